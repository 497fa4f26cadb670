package domain

import (
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/domain/roster"
)

type AttendanceFact = attendance.Fact
type AttendanceStatus = attendance.Status
type ClassKey = attendance.ClassKey
type DateRange = attendance.DateRange

type School = roster.School
type Student = roster.Student
type Teacher = roster.Teacher

const (
	StatusPresent   = attendance.StatusPresent
	StatusAbsent    = attendance.StatusAbsent
	StatusLate      = attendance.StatusLate
	StatusHalfDay   = attendance.StatusHalfDay
	StatusHoliday   = attendance.StatusHoliday
	StatusSickLeave = attendance.StatusSickLeave
)
