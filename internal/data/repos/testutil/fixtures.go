package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/attendance-backend/internal/domain"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
)

func SeedSchool(tb testing.TB, ctx context.Context, tx *gorm.DB, code string) *types.School {
	tb.Helper()
	s := &types.School{
		ID:       uuid.New(),
		Name:     "School " + code,
		Code:     code + "-" + uuid.NewString()[:8],
		Timezone: "Asia/Kolkata",
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed school: %v", err)
	}
	return s
}

func SeedStudent(tb testing.TB, ctx context.Context, tx *gorm.DB, schoolID uuid.UUID, standard string, section *string, rollNo int) *types.Student {
	tb.Helper()
	st := &types.Student{
		ID:        uuid.New(),
		SchoolID:  schoolID,
		GrNo:      fmt.Sprintf("GR-%04d", rollNo),
		RollNo:    fmt.Sprintf("%03d", rollNo),
		FirstName: fmt.Sprintf("Student%d", rollNo),
		LastName:  "Test",
		Standard:  standard,
		Section:   section,
		IsActive:  true,
	}
	if err := tx.WithContext(ctx).Create(st).Error; err != nil {
		tb.Fatalf("seed student: %v", err)
	}
	return st
}

func SeedTeacher(tb testing.TB, ctx context.Context, tx *gorm.DB, schoolID uuid.UUID, empNo string) *types.Teacher {
	tb.Helper()
	t := &types.Teacher{
		ID:        uuid.New(),
		SchoolID:  schoolID,
		EmpNo:     empNo,
		FirstName: "Teacher",
		LastName:  empNo,
		IsActive:  true,
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed teacher: %v", err)
	}
	return t
}

func SeedFact(tb testing.TB, ctx context.Context, tx *gorm.DB, st *types.Student, date time.Time, status attendance.Status, markedBy *uuid.UUID) *types.AttendanceFact {
	tb.Helper()
	f := &types.AttendanceFact{
		ID:                uuid.New(),
		Date:              attendance.DateOf(date),
		StudentID:         st.ID,
		SchoolID:          st.SchoolID,
		Status:            status,
		MarkedAt:          time.Now().UTC(),
		IsHoliday:         status == attendance.StatusHoliday,
		MarkedByTeacherID: markedBy,
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed fact: %v", err)
	}
	return f
}

// Day builds a UTC date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func Ptr[T any](v T) *T { return &v }
