package api

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/appointment-queue/internal/queue"
	"github.com/clinicdesk/appointment-queue/internal/user"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterDoctorRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Specialization  string `json:"specialization"`
	RegistrationKey string `json:"registration_key"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Name           *string `json:"name,omitempty"`
	Specialization *string `json:"specialization,omitempty"`
}

type UserResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           string    `json:"role,omitempty"`
	Specialization *string   `json:"specialization,omitempty"`
	ProfilePicture string    `json:"profile_picture"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type BookAppointmentRequest struct {
	DoctorID    string    `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type AppointmentResponse struct {
	ID          uuid.UUID     `json:"id"`
	DoctorID    uuid.UUID     `json:"doctor_id"`
	PatientID   uuid.UUID     `json:"patient_id"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	Status      string        `json:"status"`
	TurnNumber  int           `json:"turn_number"`
	Doctor      *UserResponse `json:"doctor,omitempty"`
	Patient     *UserResponse `json:"patient,omitempty"`
}

type MonthlyBucket struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}

type WeeklyBucket struct {
	DayOfWeek int `json:"day_of_week"`
	Count     int `json:"count"`
}

type StatsResponse struct {
	Total     int             `json:"total"`
	Completed int             `json:"completed"`
	Pending   int             `json:"pending"`
	Monthly   []MonthlyBucket `json:"monthly"`
	Weekly    []WeeklyBucket  `json:"weekly"`
}

type BookAppointmentResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Stats       StatsResponse       `json:"stats"`
}

type CompleteAppointmentResponse struct {
	Renumbered map[string]int `json:"renumbered"`
	Stats      StatsResponse  `json:"stats"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Mapping helpers

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           string(u.Role),
		Specialization: u.Specialization,
		ProfilePicture: u.Avatar(),
	}
}

func toSummaryResponse(s *queue.UserSummary) *UserResponse {
	if s == nil {
		return nil
	}
	return &UserResponse{
		ID:             s.ID,
		Name:           s.Name,
		Email:          s.Email,
		Specialization: s.Specialization,
		ProfilePicture: avatarOrDefault(s.Name, s.AvatarURL),
	}
}

func toAppointmentResponse(d *queue.AppointmentDetail) AppointmentResponse {
	return AppointmentResponse{
		ID:          d.ID,
		DoctorID:    d.DoctorID,
		PatientID:   d.PatientID,
		ScheduledAt: d.ScheduledAt,
		Status:      string(d.Status),
		TurnNumber:  d.TurnNumber,
		Doctor:      toSummaryResponse(d.Doctor),
		Patient:     toSummaryResponse(d.Patient),
	}
}

func toStatsResponse(st *queue.Stats) StatsResponse {
	resp := StatsResponse{
		Total:     st.Total,
		Completed: st.Completed,
		Pending:   st.Pending,
		Monthly:   make([]MonthlyBucket, 0, len(st.Monthly)),
		Weekly:    make([]WeeklyBucket, 0, len(st.Weekly)),
	}
	for _, m := range st.Monthly {
		resp.Monthly = append(resp.Monthly, MonthlyBucket(m))
	}
	for _, d := range st.Weekly {
		resp.Weekly = append(resp.Weekly, WeeklyBucket(d))
	}
	return resp
}

func renumberedStrings(m map[uuid.UUID]int) map[string]int {
	out := make(map[string]int, len(m))
	for id, turn := range m {
		out[id.String()] = turn
	}
	return out
}

func avatarOrDefault(name string, avatar *string) string {
	if avatar != nil && *avatar != "" {
		return *avatar
	}
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=random&color=fff", url.QueryEscape(name))
}
