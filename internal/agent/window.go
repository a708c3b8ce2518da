package agent

import "time"

// Window is one half-open [Start, End) extraction interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthWindows expands an inclusive month range into consecutive
// calendar-month windows. from and to are the first day of their
// months; a to before from yields no windows.
func MonthWindows(from, to time.Time) []Window {
	var out []Window
	for month := from; !month.After(to); month = month.AddDate(0, 1, 0) {
		out = append(out, Window{Start: month, End: month.AddDate(0, 1, 0)})
	}
	return out
}
