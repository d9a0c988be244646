package queue

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func appt(scheduled time.Time, status Status) Appointment {
	return Appointment{
		ID:          uuid.New(),
		DoctorID:    uuid.New(),
		PatientID:   uuid.New(),
		ScheduledAt: scheduled,
		Status:      status,
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	st := ComputeStats(nil)

	if st.Total != 0 || st.Completed != 0 || st.Pending != 0 {
		t.Fatalf("empty stats = %+v", st)
	}
	if len(st.Weekly) != 7 {
		t.Fatalf("weekly has %d entries, want 7", len(st.Weekly))
	}
	for i, d := range st.Weekly {
		if d.DayOfWeek != i+1 || d.Count != 0 {
			t.Fatalf("weekly[%d] = %+v", i, d)
		}
	}
	if len(st.Monthly) != 0 {
		t.Fatalf("monthly = %v, want empty", st.Monthly)
	}
}

func TestComputeStatsCounts(t *testing.T) {
	// 2026-03-02 is a Monday.
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)
	january := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	st := ComputeStats([]Appointment{
		appt(monday, StatusPending),
		appt(monday.Add(2*time.Hour), StatusCompleted),
		appt(sunday, StatusPending),
		appt(january, StatusCompleted),
	})

	if st.Total != 4 || st.Completed != 2 || st.Pending != 2 {
		t.Fatalf("stats = %+v", st)
	}
	if st.Total != st.Completed+st.Pending {
		t.Fatalf("total %d != completed %d + pending %d", st.Total, st.Completed, st.Pending)
	}

	if len(st.Weekly) != 7 {
		t.Fatalf("weekly has %d entries", len(st.Weekly))
	}
	if st.Weekly[0].Count != 2 { // Monday
		t.Fatalf("monday count = %d, want 2", st.Weekly[0].Count)
	}
	if st.Weekly[6].Count != 1 { // Sunday maps to 7
		t.Fatalf("sunday count = %d, want 1", st.Weekly[6].Count)
	}
	if st.Weekly[3].Count != 1 { // January 15th 2026 is a Thursday
		t.Fatalf("thursday count = %d, want 1", st.Weekly[3].Count)
	}
}

func TestComputeStatsMonthlySortedAndComplete(t *testing.T) {
	dates := []time.Time{
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC),
	}

	var appts []Appointment
	for _, d := range dates {
		appts = append(appts, appt(d, StatusPending))
	}

	st := ComputeStats(appts)

	want := []MonthCount{
		{Year: 2025, Month: 12, Count: 1},
		{Year: 2026, Month: 1, Count: 2},
		{Year: 2026, Month: 3, Count: 1},
	}
	if len(st.Monthly) != len(want) {
		t.Fatalf("monthly = %+v", st.Monthly)
	}
	total := 0
	for i, m := range st.Monthly {
		if m != want[i] {
			t.Fatalf("monthly[%d] = %+v, want %+v", i, m, want[i])
		}
		total += m.Count
	}
	if total != st.Total {
		t.Fatalf("monthly counts sum to %d, total is %d", total, st.Total)
	}
}
