package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/clinicdesk/appointment-queue/internal/redis"
)

// memRepo is an in-memory Repository with the same semantics as the
// Postgres implementation, including the all-or-nothing
// complete-and-renumber step and scheduled_at queue ordering.
type memRepo struct {
	mu           sync.Mutex
	doctors      map[uuid.UUID]*UserSummary
	patients     map[uuid.UUID]*UserSummary
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
	seq          int // tiebreaker standing in for created_at

	// failCompletion makes CompleteAndRenumber fail without applying
	// anything, the way a rolled-back transaction would.
	failCompletion bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:      make(map[uuid.UUID]*UserSummary),
		patients:     make(map[uuid.UUID]*UserSummary),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (m *memRepo) addDoctor(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.doctors[id] = &UserSummary{ID: id, Name: name, Email: name + "@clinic.test"}
	return id
}

func (m *memRepo) addPatient(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.patients[id] = &UserSummary{ID: id, Name: name, Email: name + "@patients.test"}
	return id
}

func (m *memRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.doctors[id]; ok {
		return d, nil
	}
	return nil, ErrDoctorNotFound
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.patients[id]; ok {
		return p, nil
	}
	return nil, ErrPatientNotFound
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.appointments[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, ErrAppointmentNotFound
}

func (m *memRepo) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	a, err := m.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &AppointmentDetail{
		Appointment: *a,
		Doctor:      m.doctors[a.DoctorID],
		Patient:     m.patients[a.PatientID],
	}, nil
}

func (m *memRepo) pendingLocked(doctorID uuid.UUID) []*Appointment {
	var pending []*Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Status == StatusPending {
			pending = append(pending, a)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].ScheduledAt.Equal(pending[j].ScheduledAt) {
			return pending[i].ScheduledAt.Before(pending[j].ScheduledAt)
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

func (m *memRepo) FindPending(_ context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.pendingLocked(doctorID) {
		out = append(out, *a)
	}
	return out, nil
}

func (m *memRepo) CreateAppointment(_ context.Context, doctorID, patientID uuid.UUID, scheduledAt time.Time, turn int) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	a := &Appointment{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		PatientID:   patientID,
		ScheduledAt: scheduledAt,
		Status:      StatusPending,
		TurnNumber:  turn,
		CreatedAt:   time.Unix(int64(m.seq), 0),
		UpdatedAt:   time.Now(),
	}
	m.appointments[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *memRepo) CompleteAndRenumber(_ context.Context, id, doctorID uuid.UUID) (map[uuid.UUID]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCompletion {
		return nil, errors.New("storage offline")
	}
	a, ok := m.appointments[id]
	if !ok || a.Status != StatusPending {
		return nil, ErrAppointmentNotFound
	}
	a.Status = StatusCompleted
	a.UpdatedAt = time.Now()
	return m.renumberLocked(doctorID), nil
}

func (m *memRepo) RenumberPending(_ context.Context, doctorID uuid.UUID) (map[uuid.UUID]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.renumberLocked(doctorID), nil
}

func (m *memRepo) renumberLocked(doctorID uuid.UUID) map[uuid.UUID]int {
	changed := make(map[uuid.UUID]int)
	for i, a := range m.pendingLocked(doctorID) {
		newTurn := i + 1
		if a.TurnNumber != newTurn {
			a.TurnNumber = newTurn
			changed[a.ID] = newTurn
		}
	}
	return changed
}

func (m *memRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.DoctorID == doctorID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) ListDetailsForUser(_ context.Context, userID uuid.UUID, role string) ([]AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range m.appointments {
		if (role == "doctor" && a.DoctorID == userID) || (role != "doctor" && a.PatientID == userID) {
			out = append(out, AppointmentDetail{
				Appointment: *a,
				Doctor:      m.doctors[a.DoctorID],
				Patient:     m.patients[a.PatientID],
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (m *memRepo) DoctorsWithPending(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, a := range m.appointments {
		if a.Status == StatusPending && !seen[a.DoctorID] {
			seen[a.DoctorID] = true
			ids = append(ids, a.DoctorID)
		}
	}
	return ids, nil
}

func (m *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// setTurn corrupts a stored turn number, for auditor tests.
func (m *memRepo) setTurn(id uuid.UUID, turn int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments[id].TurnNumber = turn
}

// mutexLocker serializes per doctor with real mutexes, so concurrent
// test goroutines actually block instead of failing fast.
type mutexLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newMutexLocker() *mutexLocker {
	return &mutexLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *mutexLocker) WithQueueLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[doctorID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[doctorID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

// busyLocker always reports contention.
type busyLocker struct{}

func (busyLocker) WithQueueLock(context.Context, uuid.UUID, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// recordingNotifier captures broadcasts for assertions.
type recordingNotifier struct {
	mu      sync.Mutex
	updates []QueueUpdate
}

func (n *recordingNotifier) QueueChanged(_ context.Context, u QueueUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, u)
	return nil
}

func (n *recordingNotifier) all() []QueueUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]QueueUpdate(nil), n.updates...)
}

func newTestService() (*Service, *memRepo, *recordingNotifier) {
	repo := newMemRepo()
	notifier := &recordingNotifier{}
	svc := NewService(repo, newMutexLocker(), notifier, zap.NewNop())
	return svc, repo, notifier
}

func mustBook(t *testing.T, svc *Service, doctorID, patientID uuid.UUID, scheduledAt time.Time) *AppointmentDetail {
	t.Helper()
	detail, _, err := svc.BookAppointment(context.Background(), doctorID, patientID, scheduledAt)
	if err != nil {
		t.Fatalf("book appointment: %v", err)
	}
	return detail
}

func pendingTurns(t *testing.T, repo *memRepo, doctorID uuid.UUID) []int {
	t.Helper()
	pending, err := repo.FindPending(context.Background(), doctorID)
	if err != nil {
		t.Fatalf("find pending: %v", err)
	}
	turns := make([]int, 0, len(pending))
	for _, a := range pending {
		turns = append(turns, a.TurnNumber)
	}
	sort.Ints(turns)
	return turns
}

func assertContiguous(t *testing.T, repo *memRepo, doctorID uuid.UUID) {
	t.Helper()
	turns := pendingTurns(t, repo, doctorID)
	for i, turn := range turns {
		if turn != i+1 {
			t.Fatalf("pending turns not contiguous: %v", turns)
		}
	}
}

func TestBookAssignsNextTurn(t *testing.T) {
	svc, repo, _ := newTestService()
	doctorID := repo.addDoctor("dr-adams")
	patientID := repo.addPatient("pat")

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	first := mustBook(t, svc, doctorID, patientID, base)
	if first.TurnNumber != 1 {
		t.Fatalf("empty queue booking got turn %d, want 1", first.TurnNumber)
	}

	for i := 2; i <= 4; i++ {
		d := mustBook(t, svc, doctorID, patientID, base.Add(time.Duration(i)*time.Hour))
		if d.TurnNumber != i {
			t.Fatalf("booking %d got turn %d", i, d.TurnNumber)
		}
	}

	assertContiguous(t, repo, doctorID)
}

func TestBookReturnsHydratedDetailAndStats(t *testing.T) {
	svc, repo, _ := newTestService()
	doctorID := repo.addDoctor("dr-bell")
	patientID := repo.addPatient("pat")

	detail, stats, err := svc.BookAppointment(context.Background(), doctorID, patientID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if detail.Doctor == nil || detail.Doctor.ID != doctorID {
		t.Fatal("detail not hydrated with doctor")
	}
	if detail.Patient == nil || detail.Patient.ID != patientID {
		t.Fatal("detail not hydrated with patient")
	}
	if stats.Total != 1 || stats.Pending != 1 || stats.Completed != 0 {
		t.Fatalf("unexpected stats after booking: %+v", stats)
	}
}

func TestBookValidation(t *testing.T) {
	svc, repo, _ := newTestService()
	doctorID := repo.addDoctor("dr-cho")
	patientID := repo.addPatient("pat")

	_, _, err := svc.BookAppointment(context.Background(), uuid.New(), patientID, time.Now())
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("unknown doctor: got %v, want ErrDoctorNotFound", err)
	}

	_, _, err = svc.BookAppointment(context.Background(), doctorID, uuid.New(), time.Now())
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("unknown patient: got %v, want ErrPatientNotFound", err)
	}

	_, _, err = svc.BookAppointment(context.Background(), doctorID, patientID, time.Time{})
	if !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("zero time: got %v, want ErrInvalidSchedule", err)
	}
}

func TestCompleteHeadShiftsEveryoneDown(t *testing.T) {
	svc, repo, _ := newTestService()
	doctorID := repo.addDoctor("dr-diaz")
	patientID := repo.addPatient("pat")

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := mustBook(t, svc, doctorID, patientID, base)
	b := mustBook(t, svc, doctorID, patientID, base.Add(time.Hour))
	c := mustBook(t, svc, doctorID, patientID, base.Add(2*time.Hour))

	renumbered, stats, err := svc.CompleteAppointment(context.Background(), a.ID, doctorID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	want := map[uuid.UUID]int{b.ID: 1, c.ID: 2}
	if len(renumbered) != len(want) {
		t.Fatalf("renumbered map = %v, want %v", renumbered, want)
	}
	for id, turn := range want {
		if renumbered[id] != turn {
			t.Fatalf("renumbered[%s] = %d, want %d", id, renumbered[id], turn)
		}
	}

	if stats.Completed != 1 || stats.Pending != 2 || stats.Total != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	// Completed appointment keeps the turn it last held.
	done, _ := repo.GetAppointmentByID(context.Background(), a.ID)
	if done.Status != StatusCompleted || done.TurnNumber != 1 {
		t.Fatalf("completed appointment = %+v", done)
	}

	assertContiguous(t, repo, doctorID)
}

func TestCompleteMiddleRenumbersByScheduledAt(t *testing.T) {
	svc, repo, _ := newTestService()
	doctorID := repo.addDoctor("dr-evans")
	patientID := repo.addPatient("pat")

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// Booked in creation order a, b, c but scheduled c before b:
	// queue order by time is a, c, b.
	a := mustBook(t, svc, doctorID, patientID, base)
	b := mustBook(t, svc, doctorID, patientID, base.Add(3*time.Hour))
	c := mustBook(t, svc, doctorID, patientID, base.Add(1*time.Hour))

	renumbered, _, err := svc.CompleteAppointment(context.Background(), c.ID, doctorID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	// After c leaves, the remaining set [a@1, b@2] is already
	// contiguous in scheduled order, so nothing gets rewritten.
	if len(renumbered) != 0 {
		t.Fatalf("renumbered = %v, want empty (a and b already contiguous)", renumbered)
	}

	// Now complete the head; b should become turn 1.
	renumbered, _, err = svc.CompleteAppointment(context.Background(), a.ID, doctorID)
	if err != nil {
		t.Fatalf("complete head: %v", err)
	}
	if len(renumbered) != 1 || renumbered[b.ID] != 1 {
		t.Fatalf("renumbered = %v, want {%s: 1}", renumbered, b.ID)
	}

	assertContiguous(t, repo, doctorID)
}

func TestCompleteOutOfScheduleOrderNormalizes(t *testing.T) {
	svc, repo, _ := newTestService()
	doctorID := repo.addDoctor("dr-finn")
	patientID := repo.addPatient("pat")

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	// b is booked second (turn 2) but scheduled first, so after any
	// renumbering it must come before a.
	a := mustBook(t, svc, doctorID, patientID, base.Add(2*time.Hour))
	b := mustBook(t, svc, doctorID, patientID, base)
	c := mustBook(t, svc, doctorID, patientID, base.Add(3*time.Hour))

	renumbered, _, err := svc.CompleteAppointment(context.Background(), c.ID, doctorID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Schedule order of remaining pending: b, a. Turns were a=1, b=2.
	want := map[uuid.UUID]int{b.ID: 1, a.ID: 2}
	for id, turn := range want {
		if renumbered[id] != turn {
			t.Fatalf("renumbered = %v, want %v", renumbered, want)
		}
	}
	assertContiguous(t, repo, doctorID)
}

func TestCompleteAuthorization(t *testing.T) {
	svc, repo, _ := newTestService()
	doctorID := repo.addDoctor("dr-gray")
	otherDoctor := repo.addDoctor("dr-hill")
	patientID := repo.addPatient("pat")

	appt := mustBook(t, svc, doctorID, patientID, time.Now().Add(time.Hour))

	if _, _, err := svc.CompleteAppointment(context.Background(), appt.ID, otherDoctor); !errors.Is(err, ErrNotQueueOwner) {
		t.Fatalf("other doctor completing: got %v, want ErrNotQueueOwner", err)
	}
	if _, _, err := svc.CompleteAppointment(context.Background(), appt.ID, patientID); !errors.Is(err, ErrNotQueueOwner) {
		t.Fatalf("patient completing: got %v, want ErrNotQueueOwner", err)
	}
	if _, _, err := svc.CompleteAppointment(context.Background(), uuid.New(), doctorID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("missing appointment: got %v, want ErrAppointmentNotFound", err)
	}

	if _, _, err := svc.CompleteAppointment(context.Background(), appt.ID, doctorID); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if _, _, err := svc.CompleteAppointment(context.Background(), appt.ID, doctorID); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("second completion: got %v, want ErrAlreadyCompleted", err)
	}
}

func TestCompleteFailureLeavesQueueUntouched(t *testing.T) {
	svc, repo, notifier := newTestService()
	doctorID := repo.addDoctor("dr-hart")
	patientID := repo.addPatient("pat")

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := mustBook(t, svc, doctorID, patientID, base)
	b := mustBook(t, svc, doctorID, patientID, base.Add(time.Hour))

	repo.failCompletion = true
	if _, _, err := svc.CompleteAppointment(context.Background(), a.ID, doctorID); err == nil {
		t.Fatal("completion succeeded despite storage failure")
	}

	// The flip and the renumbering are one transaction, so a failed
	// completion must leave both appointments exactly as they were.
	got, _ := repo.GetAppointmentByID(context.Background(), a.ID)
	if got.Status != StatusPending || got.TurnNumber != 1 {
		t.Fatalf("appointment mutated by failed completion: %+v", got)
	}
	got, _ = repo.GetAppointmentByID(context.Background(), b.ID)
	if got.Status != StatusPending || got.TurnNumber != 2 {
		t.Fatalf("queue mutated by failed completion: %+v", got)
	}
	if len(notifier.all()) != 0 {
		t.Fatal("failed completion was broadcast")
	}

	repo.failCompletion = false
	if _, _, err := svc.CompleteAppointment(context.Background(), a.ID, doctorID); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	assertContiguous(t, repo, doctorID)
}

func TestCompleteBroadcastsScopedUpdate(t *testing.T) {
	svc, repo, notifier := newTestService()
	doctorID := repo.addDoctor("dr-ito")
	patientID := repo.addPatient("pat")

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := mustBook(t, svc, doctorID, patientID, base)
	b := mustBook(t, svc, doctorID, patientID, base.Add(time.Hour))

	if _, _, err := svc.CompleteAppointment(context.Background(), a.ID, doctorID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	updates := notifier.all()
	if len(updates) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(updates))
	}
	u := updates[0]
	if u.DoctorID != doctorID {
		t.Fatalf("broadcast doctor = %s, want %s", u.DoctorID, doctorID)
	}
	if u.CompletedID != a.ID {
		t.Fatalf("broadcast completed id = %s, want %s", u.CompletedID, a.ID)
	}
	if u.Renumbered[b.ID.String()] != 1 {
		t.Fatalf("broadcast renumbered = %v", u.Renumbered)
	}
	if u.Stats == nil || u.Stats.Completed != 1 || u.Stats.Pending != 1 {
		t.Fatalf("broadcast stats = %+v", u.Stats)
	}
}

func TestQueueBusyMapsLockContention(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, busyLocker{}, &recordingNotifier{}, zap.NewNop())
	doctorID := repo.addDoctor("dr-jones")
	patientID := repo.addPatient("pat")

	_, _, err := svc.BookAppointment(context.Background(), doctorID, patientID, time.Now().Add(time.Hour))
	if !errors.Is(err, ErrQueueBusy) {
		t.Fatalf("book under contention: got %v, want ErrQueueBusy", err)
	}

	appt, _ := repo.CreateAppointment(context.Background(), doctorID, patientID, time.Now().Add(time.Hour), 1)
	_, _, err = svc.CompleteAppointment(context.Background(), appt.ID, doctorID)
	if !errors.Is(err, ErrQueueBusy) {
		t.Fatalf("complete under contention: got %v, want ErrQueueBusy", err)
	}
}

func TestConcurrentBookingsSerialize(t *testing.T) {
	svc, repo, _ := newTestService()
	doctorID := repo.addDoctor("dr-khan")

	const n = 10
	patients := make([]uuid.UUID, n)
	for i := range patients {
		patients[i] = repo.addPatient(fmt.Sprintf("pat-%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := svc.BookAppointment(context.Background(), doctorID, patients[i],
				time.Now().Add(time.Duration(i+1)*time.Hour))
			if err != nil {
				t.Errorf("concurrent book %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	turns := pendingTurns(t, repo, doctorID)
	if len(turns) != n {
		t.Fatalf("got %d pending, want %d", len(turns), n)
	}
	for i, turn := range turns {
		if turn != i+1 {
			t.Fatalf("duplicate or gap in concurrent turns: %v", turns)
		}
	}
}

func TestInvariantHoldsUnderSerialMix(t *testing.T) {
	svc, repo, _ := newTestService()
	doctorID := repo.addDoctor("dr-lund")
	patientID := repo.addPatient("pat")

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var open []uuid.UUID

	for i := 0; i < 40; i++ {
		if i%3 == 2 && len(open) > 0 {
			// Complete an arbitrary (possibly mid-queue) appointment.
			idx := i % len(open)
			if _, _, err := svc.CompleteAppointment(context.Background(), open[idx], doctorID); err != nil {
				t.Fatalf("complete at step %d: %v", i, err)
			}
			open = append(open[:idx], open[idx+1:]...)
		} else {
			d := mustBook(t, svc, doctorID, patientID, base.Add(time.Duration(i*37%50)*time.Hour))
			open = append(open, d.ID)
		}
		assertContiguous(t, repo, doctorID)
	}
}

func TestRepairQueuesClosesGaps(t *testing.T) {
	svc, repo, notifier := newTestService()
	doctorID := repo.addDoctor("dr-mori")
	patientID := repo.addPatient("pat")

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := mustBook(t, svc, doctorID, patientID, base)
	b := mustBook(t, svc, doctorID, patientID, base.Add(time.Hour))
	c := mustBook(t, svc, doctorID, patientID, base.Add(2*time.Hour))

	// Simulate a renumbering pass that never ran: a gap at turn 2.
	repo.setTurn(b.ID, 4)
	repo.setTurn(c.ID, 5)

	if err := svc.RepairQueues(context.Background()); err != nil {
		t.Fatalf("repair: %v", err)
	}

	assertContiguous(t, repo, doctorID)
	got, _ := repo.GetAppointmentByID(context.Background(), a.ID)
	if got.TurnNumber != 1 {
		t.Fatalf("head turn = %d after repair", got.TurnNumber)
	}

	updates := notifier.all()
	if len(updates) != 1 {
		t.Fatalf("repair broadcasts = %d, want 1", len(updates))
	}
	if len(updates[0].Renumbered) != 2 {
		t.Fatalf("repair renumbered = %v", updates[0].Renumbered)
	}
}

func TestListForUserScopesByRole(t *testing.T) {
	svc, repo, _ := newTestService()
	doctorID := repo.addDoctor("dr-novak")
	otherDoctor := repo.addDoctor("dr-owen")
	patientID := repo.addPatient("pat")

	mustBook(t, svc, doctorID, patientID, time.Now().Add(time.Hour))
	mustBook(t, svc, otherDoctor, patientID, time.Now().Add(2*time.Hour))

	docList, err := svc.ListForUser(context.Background(), doctorID, "doctor")
	if err != nil {
		t.Fatalf("list for doctor: %v", err)
	}
	if len(docList) != 1 || docList[0].DoctorID != doctorID {
		t.Fatalf("doctor list = %+v", docList)
	}

	patList, err := svc.ListForUser(context.Background(), patientID, "patient")
	if err != nil {
		t.Fatalf("list for patient: %v", err)
	}
	if len(patList) != 2 {
		t.Fatalf("patient sees %d appointments, want 2", len(patList))
	}
}
