package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
)

// Calendar knows which weekdays are not attendance days.
type Calendar struct {
	off map[time.Weekday]bool
}

// DefaultCalendar treats Sunday as the only non-attendance day.
func DefaultCalendar() Calendar { return NewCalendar(time.Sunday) }

func NewCalendar(nonWorking ...time.Weekday) Calendar {
	off := make(map[time.Weekday]bool, len(nonWorking))
	for _, d := range nonWorking {
		off[d] = true
	}
	return Calendar{off: off}
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekdays accepts names like "sunday" or "sat" (case-insensitive).
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	var out []time.Weekday
	seen := map[time.Weekday]bool{}
	for _, raw := range names {
		n := strings.ToLower(strings.TrimSpace(raw))
		if n == "" {
			continue
		}
		d, ok := weekdayNames[n]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", raw)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (c Calendar) IsWorkingDay(t time.Time) bool {
	return !c.off[t.Weekday()]
}

func (c Calendar) NonWorkingDays() []time.Weekday {
	out := make([]time.Weekday, 0, len(c.off))
	for d := range c.off {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WorkingDaysBetween counts the inclusive calendar days in [start, end] that are not
// non-attendance weekdays.
func (c Calendar) WorkingDaysBetween(start, end time.Time) (int, error) {
	const op = "calendar.working_days_between"
	if start.IsZero() || end.IsZero() {
		return 0, domainagg.Validationf(op, "start and end are required")
	}
	s, e := attendance.NormalizeDate(start), attendance.NormalizeDate(end)
	if s.After(e) {
		return 0, domainagg.Validationf(op, "start %s is after end %s", s.Format(attendance.DateLayout), e.Format(attendance.DateLayout))
	}
	days := int(e.Sub(s).Hours()/24) + 1
	if len(c.off) == 0 {
		return days, nil
	}
	working := (days / 7) * (7 - len(c.off))
	for d := s.AddDate(0, 0, (days/7)*7); !d.After(e); d = d.AddDate(0, 0, 1) {
		if c.IsWorkingDay(d) {
			working++
		}
	}
	return working, nil
}
