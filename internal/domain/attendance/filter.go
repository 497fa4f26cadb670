package attendance

import (
	"time"

	"github.com/google/uuid"
)

// FactFilter composes optional predicates over facts. Nil fields do not constrain.
// Results are ordered by date descending unless OrderAsc is set.
type FactFilter struct {
	StudentID *uuid.UUID
	TeacherID *uuid.UUID
	SchoolID  *uuid.UUID
	Range     *DateRange
	Date      *time.Time
	Status    *Status
	IsHoliday *bool
	Class     *ClassFilter

	OrderAsc bool
	Page     int
	Size     int
}

// ClassFilter matches students by standard and, when Section is set, by section.
type ClassFilter struct {
	Standard string
	Section  *string
}

func (f FactFilter) ForStudent(id uuid.UUID) FactFilter { f.StudentID = &id; return f }
func (f FactFilter) ForTeacher(id uuid.UUID) FactFilter { f.TeacherID = &id; return f }
func (f FactFilter) ForSchool(id uuid.UUID) FactFilter  { f.SchoolID = &id; return f }
func (f FactFilter) Between(r DateRange) FactFilter     { f.Range = &r; return f }
func (f FactFilter) WithStatus(s Status) FactFilter     { f.Status = &s; return f }
func (f FactFilter) Holiday(v bool) FactFilter          { f.IsHoliday = &v; return f }
func (f FactFilter) Ascending() FactFilter              { f.OrderAsc = true; return f }

func (f FactFilter) On(d time.Time) FactFilter {
	n := NormalizeDate(d)
	f.Date = &n
	return f
}

func (f FactFilter) ForClass(standard string, section *string) FactFilter {
	f.Class = &ClassFilter{Standard: standard, Section: section}
	return f
}

func (f FactFilter) Paged(page, size int) FactFilter {
	f.Page = page
	f.Size = size
	return f
}

// Page is one slice of a date-descending fact listing.
type Page struct {
	Items         []*Fact `json:"items"`
	Page          int     `json:"page"`
	Size          int     `json:"size"`
	TotalElements int64   `json:"total_elements"`
	TotalPages    int     `json:"total_pages"`
}
