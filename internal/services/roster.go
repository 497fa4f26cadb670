package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/attendance-backend/internal/data/repos"
	types "github.com/yungbote/attendance-backend/internal/domain"
	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

// RosterProvider is the read-only school directory. Lookups of unknown ids return (nil, nil).
type RosterProvider interface {
	GetSchool(ctx context.Context, id uuid.UUID) (*types.School, error)
	GetStudent(ctx context.Context, id uuid.UUID) (*types.Student, error)
	GetTeacher(ctx context.Context, id uuid.UUID) (*types.Teacher, error)
	ListActiveStudents(ctx context.Context, schoolID uuid.UUID) ([]*types.Student, error)
	ListActiveStudentsByClass(ctx context.Context, schoolID uuid.UUID, standard string, section *string) ([]*types.Student, error)
	CountStudentsByClass(ctx context.Context, schoolID uuid.UUID, standard string, section *string) (int64, error)
	ListStandards(ctx context.Context, schoolID uuid.UUID) ([]string, error)
	ListSections(ctx context.Context, schoolID uuid.UUID, standard string) ([]string, error)
}

type repoRoster struct {
	log      *logger.Logger
	schools  repos.SchoolRepo
	students repos.StudentRepo
	teachers repos.TeacherRepo
}

func NewRosterProvider(log *logger.Logger, schools repos.SchoolRepo, students repos.StudentRepo, teachers repos.TeacherRepo) RosterProvider {
	return &repoRoster{
		log:      log.With("service", "RosterProvider"),
		schools:  schools,
		students: students,
		teachers: teachers,
	}
}

func (r *repoRoster) GetSchool(ctx context.Context, id uuid.UUID) (*types.School, error) {
	return r.schools.GetByID(dbctx.Of(ctx), id)
}

func (r *repoRoster) GetStudent(ctx context.Context, id uuid.UUID) (*types.Student, error) {
	return r.students.GetByID(dbctx.Of(ctx), id)
}

func (r *repoRoster) GetTeacher(ctx context.Context, id uuid.UUID) (*types.Teacher, error) {
	return r.teachers.GetByID(dbctx.Of(ctx), id)
}

func (r *repoRoster) ListActiveStudents(ctx context.Context, schoolID uuid.UUID) ([]*types.Student, error) {
	return r.students.ListActiveBySchool(dbctx.Of(ctx), schoolID)
}

func (r *repoRoster) ListActiveStudentsByClass(ctx context.Context, schoolID uuid.UUID, standard string, section *string) ([]*types.Student, error) {
	return r.students.ListActiveByClass(dbctx.Of(ctx), schoolID, standard, section)
}

func (r *repoRoster) CountStudentsByClass(ctx context.Context, schoolID uuid.UUID, standard string, section *string) (int64, error) {
	return r.students.CountActiveByClass(dbctx.Of(ctx), schoolID, standard, section)
}

func (r *repoRoster) ListStandards(ctx context.Context, schoolID uuid.UUID) ([]string, error) {
	return r.students.ListStandards(dbctx.Of(ctx), schoolID)
}

func (r *repoRoster) ListSections(ctx context.Context, schoolID uuid.UUID, standard string) ([]string, error) {
	return r.students.ListSections(dbctx.Of(ctx), schoolID, standard)
}
