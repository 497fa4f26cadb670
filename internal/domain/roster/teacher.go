package roster

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Teacher struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SchoolID  uuid.UUID      `gorm:"type:uuid;column:school_id;not null;index" json:"school_id"`
	EmpNo     string         `gorm:"column:emp_no;index" json:"emp_no"`
	FirstName string         `gorm:"column:first_name;not null" json:"first_name"`
	LastName  string         `gorm:"column:last_name" json:"last_name"`
	IsActive  bool           `gorm:"column:is_active;not null;index" json:"is_active"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Teacher) TableName() string { return "teacher" }

func (t *Teacher) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func (t *Teacher) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}
