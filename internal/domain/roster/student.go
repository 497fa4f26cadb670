package roster

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/attendance-backend/internal/domain/attendance"
)

type Student struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SchoolID  uuid.UUID      `gorm:"type:uuid;column:school_id;not null;index;index:idx_student_class,priority:1" json:"school_id"`
	GrNo      string         `gorm:"column:gr_no;index" json:"gr_no"`
	RollNo    string         `gorm:"column:roll_no" json:"roll_no,omitempty"`
	FirstName string         `gorm:"column:first_name;not null" json:"first_name"`
	LastName  string         `gorm:"column:last_name" json:"last_name"`
	Standard  string         `gorm:"column:standard;not null;index:idx_student_class,priority:2" json:"standard"`
	Section   *string        `gorm:"column:section;index:idx_student_class,priority:3" json:"section,omitempty"`
	IsActive  bool           `gorm:"column:is_active;not null;index" json:"is_active"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Student) TableName() string { return "student" }

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

func (s *Student) ClassKey() attendance.ClassKey {
	return attendance.NewClassKey(s.Standard, s.Section)
}
