package reconciler

import (
	"reflect"
	"testing"

	"github.com/danabek/notification-dispatcher/internal/scheduling"
)

func ranges(pairs ...[2]int) []scheduling.Range {
	out := make([]scheduling.Range, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, scheduling.Range{Start: p[0], End: p[1]})
	}
	return out
}

func TestTranslateCron(t *testing.T) {
	tests := []struct {
		expr string
		want scheduling.CalendarSpec
	}{
		{
			expr: "0 9 * * MON",
			want: scheduling.CalendarSpec{
				Minutes:    ranges([2]int{0, 0}),
				Hours:      ranges([2]int{9, 9}),
				DaysOfWeek: ranges([2]int{1, 1}),
			},
		},
		{
			expr: "30 8 * * MON-FRI",
			want: scheduling.CalendarSpec{
				Minutes:    ranges([2]int{30, 30}),
				Hours:      ranges([2]int{8, 8}),
				DaysOfWeek: ranges([2]int{1, 5}),
			},
		},
		{
			// Adjacent list values collapse into one range.
			expr: "0 9,10,11,15 * * *",
			want: scheduling.CalendarSpec{
				Minutes: ranges([2]int{0, 0}),
				Hours:   ranges([2]int{9, 11}, [2]int{15, 15}),
			},
		},
		{
			expr: "*/15 * * * *",
			want: scheduling.CalendarSpec{
				Minutes: ranges([2]int{0, 0}, [2]int{15, 15}, [2]int{30, 30}, [2]int{45, 45}),
			},
		},
		{
			// 7 is Sunday, same as 0.
			expr: "0 0 * * 7",
			want: scheduling.CalendarSpec{
				Minutes:    ranges([2]int{0, 0}),
				Hours:      ranges([2]int{0, 0}),
				DaysOfWeek: ranges([2]int{0, 0}),
			},
		},
		{
			expr: "0 6 1 JAN *",
			want: scheduling.CalendarSpec{
				Minutes:     ranges([2]int{0, 0}),
				Hours:       ranges([2]int{6, 6}),
				DaysOfMonth: ranges([2]int{1, 1}),
				Months:      ranges([2]int{1, 1}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := TranslateCron(tt.expr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TranslateCron(%q) = %+v, want %+v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestTranslateCron_Invalid(t *testing.T) {
	for _, expr := range []string{"", "not a cron", "0 9 * *", "61 * * * *", "0 25 * * *", "0 0 * * 8", "0 0 * * XYZ"} {
		if _, err := TranslateCron(expr); err == nil {
			t.Errorf("TranslateCron(%q): expected error", expr)
		}
	}
}
