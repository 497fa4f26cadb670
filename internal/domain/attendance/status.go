package attendance

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPresent   Status = "PRESENT"
	StatusAbsent    Status = "ABSENT"
	StatusLate      Status = "LATE"
	StatusHalfDay   Status = "HALF_DAY"
	StatusHoliday   Status = "HOLIDAY"
	StatusSickLeave Status = "SICK_LEAVE"
)

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusPresent, StatusAbsent, StatusLate, StatusHalfDay, StatusHoliday, StatusSickLeave}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusHalfDay, StatusHoliday, StatusSickLeave:
		return true
	default:
		return false
	}
}

// CountsAsPresent reports whether the status contributes to present days.
func (s Status) CountsAsPresent() bool {
	return s == StatusPresent || s == StatusLate
}

func (s Status) String() string { return string(s) }

// ParseStatus is case-insensitive and accepts spaces or hyphens in place of underscores.
func ParseStatus(raw string) (Status, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	s := Status(norm)
	if !s.Valid() {
		return "", fmt.Errorf("unknown attendance status %q", raw)
	}
	return s, nil
}
