package roster

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type School struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Code      string         `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Timezone  string         `gorm:"column:timezone" json:"timezone,omitempty"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (School) TableName() string { return "school" }

func (s *School) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
