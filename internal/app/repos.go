package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/attendance-backend/internal/data/repos"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

type Repos struct {
	Facts    repos.AttendanceFactRepo
	Schools  repos.SchoolRepo
	Students repos.StudentRepo
	Teachers repos.TeacherRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Facts:    repos.NewAttendanceFactRepo(db, log),
		Schools:  repos.NewSchoolRepo(db, log),
		Students: repos.NewStudentRepo(db, log),
		Teachers: repos.NewTeacherRepo(db, log),
	}
}
