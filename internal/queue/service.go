package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/clinicdesk/appointment-queue/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventQueueRenumbered      = "QUEUE_RENUMBERED"
)

var (
	ErrQueueBusy        = errors.New("doctor queue is busy, please retry")
	ErrNotQueueOwner    = errors.New("appointment belongs to another doctor")
	ErrAlreadyCompleted = errors.New("appointment is already completed")
	ErrInvalidSchedule  = errors.New("scheduled time is required")
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	log      *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		log:      log,
	}
}

// BookAppointment creates a pending appointment at the tail of the
// doctor's queue: turn number = current pending count + 1. The read
// and the insert run inside a per-doctor lock so two concurrent
// bookings can never observe the same count.
func (s *Service) BookAppointment(ctx context.Context, doctorID, patientID uuid.UUID, scheduledAt time.Time) (*AppointmentDetail, *Stats, error) {
	if scheduledAt.IsZero() {
		return nil, nil, ErrInvalidSchedule
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load patient: %w", err)
	}

	var created *Appointment

	err := s.locker.WithQueueLock(ctx, doctorID, func(lockCtx context.Context) error {
		pending, err := s.repo.FindPending(lockCtx, doctorID)
		if err != nil {
			return fmt.Errorf("load pending queue: %w", err)
		}

		appt, err := s.repo.CreateAppointment(lockCtx, doctorID, patientID, scheduledAt, len(pending)+1)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":    doctorID.String(),
			"patient_id":   patientID.String(),
			"scheduled_at": scheduledAt,
			"turn_number":  appt.TurnNumber,
		})

		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, nil, ErrQueueBusy
		}
		return nil, nil, err
	}

	detail, err := s.repo.GetAppointmentDetail(ctx, created.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load created appointment: %w", err)
	}

	stats, err := s.Stats(ctx, doctorID)
	if err != nil {
		return nil, nil, err
	}

	return detail, stats, nil
}

// CompleteAppointment flips the appointment to completed and restores
// queue contiguity: remaining pending appointments are renumbered 1..N
// by scheduled_at ascending in a single transaction. Only the doctor
// who owns the queue may complete. The renumbering result is returned
// to the caller and broadcast to subscribed clients.
func (s *Service) CompleteAppointment(ctx context.Context, appointmentID, requesterID uuid.UUID) (map[uuid.UUID]int, *Stats, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.DoctorID != requesterID {
		return nil, nil, ErrNotQueueOwner
	}

	var renumbered map[uuid.UUID]int

	err = s.locker.WithQueueLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		changed, err := s.repo.CompleteAndRenumber(lockCtx, appt.ID, appt.DoctorID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Conditional update matched nothing: already completed.
				return ErrAlreadyCompleted
			}
			return fmt.Errorf("complete appointment: %w", err)
		}
		renumbered = changed

		s.logEvent(lockCtx, appt.ID, EventAppointmentCompleted, map[string]any{
			"doctor_id": appt.DoctorID.String(),
		})
		if len(renumbered) > 0 {
			s.logEvent(lockCtx, appt.ID, EventQueueRenumbered, map[string]any{
				"doctor_id":  appt.DoctorID.String(),
				"renumbered": stringKeyed(renumbered),
			})
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, nil, ErrQueueBusy
		}
		return nil, nil, err
	}

	stats, err := s.Stats(ctx, appt.DoctorID)
	if err != nil {
		return nil, nil, err
	}

	update := QueueUpdate{
		DoctorID:    appt.DoctorID,
		CompletedID: appt.ID,
		Renumbered:  stringKeyed(renumbered),
		Stats:       stats,
	}
	if err := s.notifier.QueueChanged(ctx, update); err != nil {
		// The completing doctor already has the result in hand;
		// listeners just miss this one update.
		s.log.Warn("queue update broadcast failed",
			zap.String("doctor_id", appt.DoctorID.String()),
			zap.Error(err))
	}

	return renumbered, stats, nil
}

// Stats recomputes the doctor's dashboard summary from scratch.
func (s *Service) Stats(ctx context.Context, doctorID uuid.UUID) (*Stats, error) {
	appts, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list appointments for stats: %w", err)
	}
	return ComputeStats(appts), nil
}

// ListForUser returns the hydrated appointments visible to a user:
// a doctor sees their queue, a patient sees their bookings.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, role string) ([]AppointmentDetail, error) {
	details, err := s.repo.ListDetailsForUser(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return details, nil
}

// RepairQueues is intended to be called by the auditor periodically.
// A renumbering pass that failed mid-flight leaves a gap in some
// doctor's queue; re-running the pass restores contiguity.
func (s *Service) RepairQueues(ctx context.Context) error {
	doctorIDs, err := s.repo.DoctorsWithPending(ctx)
	if err != nil {
		return fmt.Errorf("list doctors with pending queues: %w", err)
	}

	for _, doctorID := range doctorIDs {
		err := s.locker.WithQueueLock(ctx, doctorID, func(lockCtx context.Context) error {
			renumbered, err := s.repo.RenumberPending(lockCtx, doctorID)
			if err != nil {
				return err
			}
			if len(renumbered) == 0 {
				return nil
			}

			s.log.Info("repaired queue",
				zap.String("doctor_id", doctorID.String()),
				zap.Int("changed", len(renumbered)))
			s.logEvent(lockCtx, uuid.Nil, EventQueueRenumbered, map[string]any{
				"doctor_id":  doctorID.String(),
				"renumbered": stringKeyed(renumbered),
				"reason":     "auditor",
			})

			stats, err := s.Stats(lockCtx, doctorID)
			if err != nil {
				return err
			}
			return s.notifier.QueueChanged(lockCtx, QueueUpdate{
				DoctorID:   doctorID,
				Renumbered: stringKeyed(renumbered),
				Stats:      stats,
			})
		})
		if err != nil {
			if errors.Is(err, redisclient.ErrLockNotAcquired) {
				// Someone is mutating this queue right now; their own
				// renumbering pass will leave it contiguous.
				continue
			}
			s.log.Warn("queue repair failed",
				zap.String("doctor_id", doctorID.String()),
				zap.Error(err))
		}
	}

	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if appointmentID != uuid.Nil {
		apptID := appointmentID
		ev.AppointmentID = &apptID
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
	}
}

func stringKeyed(m map[uuid.UUID]int) map[string]int {
	out := make(map[string]int, len(m))
	for id, turn := range m {
		out[id.String()] = turn
	}
	return out
}
