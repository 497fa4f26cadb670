package db

import (
	"fmt"

	types "github.com/yungbote/attendance-backend/internal/domain"
	"gorm.io/gorm"
)

const attendanceNaturalKeyIndex = "idx_attendance_fact_date_student"

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// =========================
		// Roster
		// =========================
		&types.School{},
		&types.Student{},
		&types.Teacher{},

		// =========================
		// Attendance ledger
		// =========================
		&types.AttendanceFact{},
	); err != nil {
		return err
	}
	return ensureAttendanceIndexes(db)
}

// The upsert path depends on this index; fail loudly if a migration drifted.
func ensureAttendanceIndexes(db *gorm.DB) error {
	m := db.Migrator()
	if m.HasIndex(&types.AttendanceFact{}, attendanceNaturalKeyIndex) {
		return nil
	}
	if err := m.CreateIndex(&types.AttendanceFact{}, attendanceNaturalKeyIndex); err != nil {
		return fmt.Errorf("create %s: %w", attendanceNaturalKeyIndex, err)
	}
	return nil
}
