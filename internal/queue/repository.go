package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*UserSummary, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*UserSummary, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// FindPending returns a doctor's pending appointments ordered by
	// scheduled_at ascending, the canonical queue order.
	FindPending(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error)

	CreateAppointment(ctx context.Context, doctorID, patientID uuid.UUID, scheduledAt time.Time, turn int) (*Appointment, error)

	// CompleteAndRenumber flips a pending appointment to completed and
	// rewrites the remaining pending turns to 1..N in scheduled_at
	// order, all in one transaction. The flip and the renumbering
	// either both apply or neither does. Returns ErrAppointmentNotFound
	// when the appointment is not pending anymore.
	CompleteAndRenumber(ctx context.Context, id, doctorID uuid.UUID) (map[uuid.UUID]int, error)

	// RenumberPending rewrites turn numbers for a doctor's pending set
	// to the contiguous sequence 1..N in scheduled_at order, touching
	// only rows whose turn actually changes. The whole pass is a single
	// transaction: it either applies completely or not at all.
	RenumberPending(ctx context.Context, doctorID uuid.UUID) (map[uuid.UUID]int, error)

	// ListByDoctor returns every appointment for the doctor, any status.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error)
	ListDetailsForUser(ctx context.Context, userID uuid.UUID, role string) ([]AppointmentDetail, error)

	// Queue auditor
	DoctorsWithPending(ctx context.Context) ([]uuid.UUID, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
