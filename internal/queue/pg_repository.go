package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanUserSummary(row pgx.Row, notFound error) (*UserSummary, error) {
	var u UserSummary

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Specialization,
		&u.AvatarURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, err
	}

	return &u, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.ScheduledAt,
		&a.Status,
		&a.TurnNumber,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

const appointmentCols = `id, doctor_id, patient_id, scheduled_at, status, turn_number, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*UserSummary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, specialization, avatar_url
		FROM users
		WHERE id = $1 AND role = 'doctor'
	`, id)
	return scanUserSummary(row, ErrDoctorNotFound)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*UserSummary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, specialization, avatar_url
		FROM users
		WHERE id = $1 AND role = 'patient'
	`, id)
	return scanUserSummary(row, ErrPatientNotFound)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindPending(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE doctor_id = $1 AND status = 'pending'
		ORDER BY scheduled_at ASC, created_at ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, doctorID, patientID uuid.UUID, scheduledAt time.Time, turn int) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, scheduled_at, status, turn_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, now(), now())
		RETURNING `+appointmentCols+`
	`, id, doctorID, patientID, scheduledAt, turn)

	return scanAppointment(row)
}

// CompleteAndRenumber marks the appointment completed and closes the
// gap it leaves in the queue, inside a single transaction. The
// conditional status flip doubles as the already-completed check.
func (r *PgRepository) CompleteAndRenumber(ctx context.Context, id, doctorID uuid.UUID) (map[uuid.UUID]int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin complete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'completed',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'pending'
	`, id)
	if err != nil {
		return nil, fmt.Errorf("complete appointment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrAppointmentNotFound
	}

	changed, err := renumberPendingTx(ctx, tx, doctorID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit complete tx: %w", err)
	}

	return changed, nil
}

// RenumberPending runs the whole renumbering pass in one transaction.
// The pending rows are locked in queue order, then only the rows whose
// turn number actually changes are rewritten.
func (r *PgRepository) RenumberPending(ctx context.Context, doctorID uuid.UUID) (map[uuid.UUID]int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin renumber tx: %w", err)
	}
	defer tx.Rollback(ctx)

	changed, err := renumberPendingTx(ctx, tx, doctorID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit renumber tx: %w", err)
	}

	return changed, nil
}

func renumberPendingTx(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, turn_number
		FROM appointments
		WHERE doctor_id = $1 AND status = 'pending'
		ORDER BY scheduled_at ASC, created_at ASC
		FOR UPDATE
	`, doctorID)
	if err != nil {
		return nil, err
	}

	type entry struct {
		id   uuid.UUID
		turn int
	}
	var pending []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.turn); err != nil {
			rows.Close()
			return nil, err
		}
		pending = append(pending, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	changed := make(map[uuid.UUID]int)
	for i, e := range pending {
		newTurn := i + 1
		if e.turn == newTurn {
			continue
		}
		if _, err := tx.Exec(ctx, `
			UPDATE appointments
			SET turn_number = $2, updated_at = now()
			WHERE id = $1
		`, e.id, newTurn); err != nil {
			return nil, fmt.Errorf("update turn number: %w", err)
		}
		changed[e.id] = newTurn
	}

	return changed, nil
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY scheduled_at ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

const detailQuery = `
	SELECT a.id, a.doctor_id, a.patient_id, a.scheduled_at, a.status, a.turn_number, a.created_at, a.updated_at,
	       d.id, d.name, d.email, d.specialization, d.avatar_url,
	       p.id, p.name, p.email, p.specialization, p.avatar_url
	FROM appointments a
	JOIN users d ON d.id = a.doctor_id
	JOIN users p ON p.id = a.patient_id
`

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var det AppointmentDetail
	var doctor, patient UserSummary

	err := row.Scan(
		&det.ID,
		&det.DoctorID,
		&det.PatientID,
		&det.ScheduledAt,
		&det.Status,
		&det.TurnNumber,
		&det.CreatedAt,
		&det.UpdatedAt,
		&doctor.ID,
		&doctor.Name,
		&doctor.Email,
		&doctor.Specialization,
		&doctor.AvatarURL,
		&patient.ID,
		&patient.Name,
		&patient.Email,
		&patient.Specialization,
		&patient.AvatarURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	det.Doctor = &doctor
	det.Patient = &patient
	return &det, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, detailQuery+`WHERE a.id = $1`, id)
	return scanDetail(row)
}

func (r *PgRepository) ListDetailsForUser(ctx context.Context, userID uuid.UUID, role string) ([]AppointmentDetail, error) {
	column := "a.patient_id"
	if role == "doctor" {
		column = "a.doctor_id"
	}

	rows, err := r.pool.Query(ctx, detailQuery+`
		WHERE `+column+` = $1
		ORDER BY a.scheduled_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		det, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *det)
	}

	return result, rows.Err()
}

func (r *PgRepository) DoctorsWithPending(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT doctor_id
		FROM appointments
		WHERE status = 'pending'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
