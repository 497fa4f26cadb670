package attendance

import (
	"time"

	"github.com/google/uuid"
)

// Statistics summarises a student's attendance over a range. Holiday facts are excluded.
type Statistics struct {
	TotalDays            int     `json:"total_days"`
	PresentDays          int     `json:"present_days"`
	AbsentDays           int     `json:"absent_days"`
	HalfDays             int     `json:"half_days"`
	SickLeaveDays        int     `json:"sick_leave_days"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

type ClassDailySummary struct {
	ClassKey             ClassKey `json:"class_key"`
	Standard             string   `json:"standard"`
	Section              string   `json:"section"`
	TotalStudents        int      `json:"total_students"`
	PresentCount         int      `json:"present_count"`
	AbsentCount          int      `json:"absent_count"`
	LateCount            int      `json:"late_count"`
	HalfDayCount         int      `json:"half_day_count"`
	SickLeaveCount       int      `json:"sick_leave_count"`
	HolidayCount         int      `json:"holiday_count"`
	AttendancePercentage float64  `json:"attendance_percentage"`
}

// ClassStatusCount is one (class, status) bucket of a day's facts.
type ClassStatusCount struct {
	Standard string
	Section  *string
	Status   Status
	Count    int64
}

// Summary is the per-person report for a student or a teacher.
type Summary struct {
	SubjectID            uuid.UUID `json:"subject_id"`
	SubjectType          string    `json:"subject_type"`
	Name                 string    `json:"name"`
	ClassKey             ClassKey  `json:"class_key,omitempty"`
	From                 time.Time `json:"from"`
	To                   time.Time `json:"to"`
	TotalDays            int       `json:"total_days"`
	PresentDays          int       `json:"present_days"`
	AbsentDays           int       `json:"absent_days"`
	HalfDays             int       `json:"half_days"`
	SickLeaveDays        int       `json:"sick_leave_days"`
	HolidayDays          int       `json:"holiday_days"`
	AttendancePercentage float64   `json:"attendance_percentage"`
}

type MonthlyOverview struct {
	SchoolID          uuid.UUID `json:"school_id"`
	Year              int       `json:"year"`
	Month             int       `json:"month"`
	TotalRecords      int       `json:"total_records"`
	PresentCount      int       `json:"present_count"`
	AbsentCount       int       `json:"absent_count"`
	LateCount         int       `json:"late_count"`
	HalfDayCount      int       `json:"half_day_count"`
	SickLeaveCount    int       `json:"sick_leave_count"`
	PresentPercentage float64   `json:"present_percentage"`
	AbsentPercentage  float64   `json:"absent_percentage"`
	LatePercentage    float64   `json:"late_percentage"`
}

type ClassStatistics struct {
	ClassKey             ClassKey `json:"class_key"`
	Standard             string   `json:"standard"`
	Section              string   `json:"section"`
	TotalRecords         int      `json:"total_records"`
	PresentCount         int      `json:"present_count"`
	AbsentCount          int      `json:"absent_count"`
	AttendancePercentage float64  `json:"attendance_percentage"`
}

type TrendPoint struct {
	Date   time.Time `json:"date"`
	Status Status    `json:"status"`
}

type LowAttendanceStudent struct {
	StudentID            uuid.UUID `json:"student_id"`
	Name                 string    `json:"name"`
	ClassKey             ClassKey  `json:"class_key"`
	TotalDays            int       `json:"total_days"`
	PresentDays          int       `json:"present_days"`
	AttendancePercentage float64   `json:"attendance_percentage"`
}

// Percentage returns part/total*100, or 0 when total is zero.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
