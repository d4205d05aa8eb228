package reconciler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/danabek/notification-dispatcher/internal/scheduling"
	"github.com/robfig/cron/v3"
)

// cronField describes the bounds and mnemonics of one position in a
// 5-field cron expression.
type cronField struct {
	name  string
	min   int
	max   int
	names map[string]int
}

var cronFields = [5]cronField{
	{name: "minute", min: 0, max: 59},
	{name: "hour", min: 0, max: 23},
	{name: "day-of-month", min: 1, max: 31},
	{name: "month", min: 1, max: 12, names: map[string]int{
		"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
		"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
	}},
	{name: "day-of-week", min: 0, max: 6, names: map[string]int{
		"SUN": 0, "MON": 1, "TUE": 2, "WED": 3, "THU": 4, "FRI": 5, "SAT": 6,
	}},
}

// TranslateCron turns a 5-field cron expression (weekday and month
// mnemonics allowed, 7 accepted for Sunday) into the scheduling backend's
// calendar spec. An empty field slice in the result means "every value".
func TranslateCron(expr string) (scheduling.CalendarSpec, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return scheduling.CalendarSpec{}, fmt.Errorf("cron %q: want 5 fields, got %d", expr, len(fields))
	}

	// Cross-check the first four fields against the grammar the rest of
	// the ecosystem uses. Day-of-week is excluded: robfig rejects 7 for
	// Sunday, which rule authors are allowed to write; cronValue bounds
	// that field itself.
	validate := strings.Join(fields[:4], " ") + " *"
	if _, err := cron.ParseStandard(validate); err != nil {
		return scheduling.CalendarSpec{}, fmt.Errorf("parse cron %q: %w", expr, err)
	}

	var parsed [5][]scheduling.Range
	for i, raw := range fields {
		ranges, err := parseCronField(raw, cronFields[i])
		if err != nil {
			return scheduling.CalendarSpec{}, fmt.Errorf("cron %q: %w", expr, err)
		}
		parsed[i] = ranges
	}

	return scheduling.CalendarSpec{
		Minutes:     parsed[0],
		Hours:       parsed[1],
		DaysOfMonth: parsed[2],
		Months:      parsed[3],
		DaysOfWeek:  parsed[4],
	}, nil
}

// parseCronField expands one field into sorted, merged inclusive ranges.
// A bare "*" returns nil (every value).
func parseCronField(raw string, f cronField) ([]scheduling.Range, error) {
	if raw == "*" {
		return nil, nil
	}

	set := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		if err := expandPart(part, f, set); err != nil {
			return nil, err
		}
	}

	values := make([]int, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Ints(values)

	var ranges []scheduling.Range
	for _, v := range values {
		if n := len(ranges); n > 0 && ranges[n-1].End == v-1 {
			ranges[n-1].End = v
			continue
		}
		ranges = append(ranges, scheduling.Range{Start: v, End: v})
	}
	return ranges, nil
}

func expandPart(part string, f cronField, set map[int]bool) error {
	step := 1
	if idx := strings.Index(part, "/"); idx >= 0 {
		s, err := strconv.Atoi(part[idx+1:])
		if err != nil || s <= 0 {
			return fmt.Errorf("%s: bad step in %q", f.name, part)
		}
		step = s
		part = part[:idx]
	}

	lo, hi := f.min, f.max
	switch {
	case part == "*":
		// full range with step
	case strings.Contains(part, "-"):
		bounds := strings.SplitN(part, "-", 2)
		var err error
		if lo, err = cronValue(bounds[0], f); err != nil {
			return err
		}
		if hi, err = cronValue(bounds[1], f); err != nil {
			return err
		}
		if lo > hi {
			return fmt.Errorf("%s: inverted range %q", f.name, part)
		}
	default:
		v, err := cronValue(part, f)
		if err != nil {
			return err
		}
		lo, hi = v, v
		if step > 1 {
			hi = f.max // "N/step" means N through max
		}
	}

	for v := lo; v <= hi; v += step {
		set[v] = true
	}
	return nil
}

func cronValue(s string, f cronField) (int, error) {
	if f.names != nil {
		if v, ok := f.names[strings.ToUpper(s)]; ok {
			return v, nil
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: bad value %q", f.name, s)
	}
	// Both 0 and 7 mean Sunday.
	if f.name == "day-of-week" && v == 7 {
		v = 0
	}
	if v < f.min || v > f.max {
		return 0, fmt.Errorf("%s: value %d out of range [%d,%d]", f.name, v, f.min, f.max)
	}
	return v, nil
}
