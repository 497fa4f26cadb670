package attendance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxNoteLength bounds Fact.Note.
const MaxNoteLength = 500

// Fact is one student's attendance on one calendar day. (StudentID, Date) is unique.
type Fact struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Date              datatypes.Date `gorm:"column:date;not null;uniqueIndex:idx_attendance_fact_date_student,priority:1;index" json:"date"`
	StudentID         uuid.UUID      `gorm:"type:uuid;column:student_id;not null;uniqueIndex:idx_attendance_fact_date_student,priority:2;index" json:"student_id"`
	SchoolID          uuid.UUID      `gorm:"type:uuid;column:school_id;not null;index" json:"school_id"`
	Status            Status         `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	Note              string         `gorm:"column:note;type:varchar(500)" json:"note,omitempty"`
	MarkedAt          time.Time      `gorm:"column:marked_at;not null" json:"marked_at"`
	IsHoliday         bool           `gorm:"column:is_holiday;not null" json:"is_holiday"`
	MarkedByTeacherID *uuid.UUID     `gorm:"type:uuid;column:marked_by_teacher_id;index" json:"marked_by_teacher_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (Fact) TableName() string { return "attendance_fact" }

func (f *Fact) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// Day returns the fact's calendar day at UTC midnight.
func (f *Fact) Day() time.Time {
	return NormalizeDate(time.Time(f.Date))
}

// CountsTowardTotal is false for holiday facts, which never enter attendance percentages.
func (f *Fact) CountsTowardTotal() bool {
	return f.Status != StatusHoliday && !f.IsHoliday
}
