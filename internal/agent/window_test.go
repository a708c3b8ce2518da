package agent

import (
	"testing"
	"time"
)

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.Local)
}

func TestMonthWindows(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want []Window
	}{
		{
			name: "same month",
			from: month(2026, time.March),
			to:   month(2026, time.March),
			want: []Window{
				{Start: month(2026, time.March), End: month(2026, time.April)},
			},
		},
		{
			name: "multi month",
			from: month(2026, time.January),
			to:   month(2026, time.March),
			want: []Window{
				{Start: month(2026, time.January), End: month(2026, time.February)},
				{Start: month(2026, time.February), End: month(2026, time.March)},
				{Start: month(2026, time.March), End: month(2026, time.April)},
			},
		},
		{
			name: "inclusive upper bound across a year boundary",
			from: month(2025, time.November),
			to:   month(2026, time.January),
			want: []Window{
				{Start: month(2025, time.November), End: month(2025, time.December)},
				{Start: month(2025, time.December), End: month(2026, time.January)},
				{Start: month(2026, time.January), End: month(2026, time.February)},
			},
		},
		{
			name: "to before from",
			from: month(2026, time.May),
			to:   month(2026, time.April),
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MonthWindows(tc.from, tc.to)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d windows, want %d: %+v", len(got), len(tc.want), got)
			}
			for i := range got {
				if !got[i].Start.Equal(tc.want[i].Start) || !got[i].End.Equal(tc.want[i].End) {
					t.Errorf("window %d: got [%s, %s), want [%s, %s)", i,
						got[i].Start.Format("2006-01"), got[i].End.Format("2006-01"),
						tc.want[i].Start.Format("2006-01"), tc.want[i].End.Format("2006-01"))
				}
			}
		})
	}
}
