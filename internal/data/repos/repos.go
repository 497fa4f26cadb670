package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/attendance-backend/internal/data/repos/attendance"
	"github.com/yungbote/attendance-backend/internal/data/repos/roster"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

type AttendanceFactRepo = attendance.FactRepo
type ClassStatusCount = attendance.ClassStatusCount

type SchoolRepo = roster.SchoolRepo
type StudentRepo = roster.StudentRepo
type TeacherRepo = roster.TeacherRepo

func NewAttendanceFactRepo(db *gorm.DB, baseLog *logger.Logger) AttendanceFactRepo {
	return attendance.NewFactRepo(db, baseLog)
}

func NewSchoolRepo(db *gorm.DB, baseLog *logger.Logger) SchoolRepo {
	return roster.NewSchoolRepo(db, baseLog)
}
func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	return roster.NewStudentRepo(db, baseLog)
}
func NewTeacherRepo(db *gorm.DB, baseLog *logger.Logger) TeacherRepo {
	return roster.NewTeacherRepo(db, baseLog)
}
