package attendance

import (
	"gorm.io/gorm"

	"github.com/yungbote/attendance-backend/internal/domain/attendance"
)

const factTable = "attendance_fact"

// applyFilter narrows q by every non-nil predicate in f. Columns are table-qualified
// because the class predicate joins student.
func applyFilter(q *gorm.DB, f attendance.FactFilter) *gorm.DB {
	if f.StudentID != nil {
		q = q.Where(factTable+".student_id = ?", *f.StudentID)
	}
	if f.TeacherID != nil {
		q = q.Where(factTable+".marked_by_teacher_id = ?", *f.TeacherID)
	}
	if f.SchoolID != nil {
		q = q.Where(factTable+".school_id = ?", *f.SchoolID)
	}
	if f.Range != nil {
		if !f.Range.From.IsZero() {
			q = q.Where(factTable+".date >= ?", attendance.DateOf(f.Range.From))
		}
		if !f.Range.To.IsZero() {
			q = q.Where(factTable+".date <= ?", attendance.DateOf(f.Range.To))
		}
	}
	if f.Date != nil {
		q = q.Where(factTable+".date = ?", attendance.DateOf(*f.Date))
	}
	if f.Status != nil {
		q = q.Where(factTable+".status = ?", *f.Status)
	}
	if f.IsHoliday != nil {
		q = q.Where(factTable+".is_holiday = ?", *f.IsHoliday)
	}
	if f.Class != nil {
		q = q.Joins("JOIN student ON student.id = "+factTable+".student_id").
			Where("student.standard = ?", f.Class.Standard)
		if f.Class.Section != nil {
			q = q.Where("student.section = ?", *f.Class.Section)
		}
	}
	return q
}

func applyOrder(q *gorm.DB, f attendance.FactFilter) *gorm.DB {
	if f.OrderAsc {
		return q.Order(factTable + ".date ASC").Order(factTable + ".id")
	}
	return q.Order(factTable + ".date DESC").Order(factTable + ".id")
}

func applyPage(q *gorm.DB, f attendance.FactFilter) *gorm.DB {
	if f.Size <= 0 {
		return q
	}
	page := f.Page
	if page < 0 {
		page = 0
	}
	return q.Offset(page * f.Size).Limit(f.Size)
}
