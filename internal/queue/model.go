package queue

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Appointment is one entry in a doctor's queue. TurnNumber is the
// 1-based position within the doctor's pending set and is only
// meaningful while Status is pending; a completed appointment keeps
// whatever turn it last held.
type Appointment struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	ScheduledAt time.Time
	Status      Status
	TurnNumber  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserSummary is the slice of a user record that appointment
// listings are hydrated with.
type UserSummary struct {
	ID             uuid.UUID
	Name           string
	Email          string
	Specialization *string
	AvatarURL      *string
}

type AppointmentDetail struct {
	Appointment
	Doctor  *UserSummary
	Patient *UserSummary
}

type MonthCount struct {
	Year  int
	Month int // 1-12
	Count int
}

type DayCount struct {
	DayOfWeek int // ISO: 1 = Monday .. 7 = Sunday
	Count     int
}

type Stats struct {
	Total     int
	Completed int
	Pending   int
	Monthly   []MonthCount
	Weekly    []DayCount // always 7 entries, zero-filled
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
