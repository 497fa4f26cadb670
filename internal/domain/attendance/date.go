package attendance

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const DateLayout = "2006-01-02"

// NormalizeDate keeps the calendar day of t and pins it to UTC midnight.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOf converts t into the stored date representation.
func DateOf(t time.Time) datatypes.Date {
	return datatypes.Date(NormalizeDate(t))
}

func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return t, nil
}

// DateRange is an inclusive range of calendar days. A zero bound is open.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func NewDateRange(from, to time.Time) DateRange {
	r := DateRange{}
	if !from.IsZero() {
		r.From = NormalizeDate(from)
	}
	if !to.IsZero() {
		r.To = NormalizeDate(to)
	}
	return r
}

func (r DateRange) Closed() bool { return !r.From.IsZero() && !r.To.IsZero() }

func (r DateRange) Validate() error {
	if r.Closed() && NormalizeDate(r.From).After(NormalizeDate(r.To)) {
		return fmt.Errorf("start date %s is after end date %s", r.From.Format(DateLayout), r.To.Format(DateLayout))
	}
	return nil
}

func (r DateRange) Contains(t time.Time) bool {
	d := NormalizeDate(t)
	if !r.From.IsZero() && d.Before(NormalizeDate(r.From)) {
		return false
	}
	if !r.To.IsZero() && d.After(NormalizeDate(r.To)) {
		return false
	}
	return true
}

// MonthRange returns the first and last day of the month.
func MonthRange(year int, month time.Month) DateRange {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{From: first, To: first.AddDate(0, 1, -1)}
}
