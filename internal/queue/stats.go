package queue

import "sort"

// ComputeStats derives the dashboard summary from a doctor's full
// appointment set. It is a pure function recomputed on demand; there
// is no cached or incremental state to fall out of sync.
func ComputeStats(appointments []Appointment) *Stats {
	st := &Stats{
		Total:  len(appointments),
		Weekly: make([]DayCount, 7),
	}
	for i := range st.Weekly {
		st.Weekly[i].DayOfWeek = i + 1
	}

	months := make(map[[2]int]int)

	for _, a := range appointments {
		switch a.Status {
		case StatusCompleted:
			st.Completed++
		case StatusPending:
			st.Pending++
		}

		y, m := a.ScheduledAt.Year(), int(a.ScheduledAt.Month())
		months[[2]int{y, m}]++

		st.Weekly[isoWeekday(a)-1].Count++
	}

	for key, count := range months {
		st.Monthly = append(st.Monthly, MonthCount{Year: key[0], Month: key[1], Count: count})
	}
	sort.Slice(st.Monthly, func(i, j int) bool {
		if st.Monthly[i].Year != st.Monthly[j].Year {
			return st.Monthly[i].Year < st.Monthly[j].Year
		}
		return st.Monthly[i].Month < st.Monthly[j].Month
	})

	return st
}

// isoWeekday maps time.Weekday (Sunday = 0) onto ISO numbering
// (Monday = 1 .. Sunday = 7).
func isoWeekday(a Appointment) int {
	wd := int(a.ScheduledAt.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
