package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventMarked        EventType = "attendance.marked"
	EventBulkMarked    EventType = "attendance.bulk_marked"
	EventRosterMarked  EventType = "attendance.roster_marked"
	EventHolidayMarked EventType = "attendance.holiday_marked"
	EventCorrected     EventType = "attendance.corrected"
	EventDeleted       EventType = "attendance.deleted"
	EventLowAttendance EventType = "attendance.low_attendance"
)

// Event is the JSON envelope published on the attendance channel.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       EventType       `json:"type"`
	SchoolID   uuid.UUID       `json:"school_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func NewEvent(t EventType, schoolID uuid.UUID, at time.Time, data any) (Event, error) {
	ev := Event{ID: uuid.New(), Type: t, SchoolID: schoolID, OccurredAt: at.UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, err
		}
		ev.Data = raw
	}
	return ev, nil
}

// Decode unmarshals the payload into out.
func (e Event) Decode(out any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}

// Payloads.

type MarkedData struct {
	FactID    uuid.UUID  `json:"fact_id"`
	StudentID uuid.UUID  `json:"student_id"`
	Date      string     `json:"date"`
	Status    string     `json:"status"`
	TeacherID *uuid.UUID `json:"teacher_id,omitempty"`
}

type BatchData struct {
	Date      string     `json:"date,omitempty"`
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	IsHoliday bool       `json:"is_holiday,omitempty"`
	TeacherID *uuid.UUID `json:"teacher_id,omitempty"`
}

type LowAttendanceData struct {
	StudentID            uuid.UUID `json:"student_id"`
	StudentName          string    `json:"student_name"`
	ClassKey             string    `json:"class_key"`
	AttendancePercentage float64   `json:"attendance_percentage"`
	Threshold            float64   `json:"threshold"`
	From                 string    `json:"from,omitempty"`
	To                   string    `json:"to,omitempty"`
}
