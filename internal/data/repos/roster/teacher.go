package roster

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/attendance-backend/internal/domain"
	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

type TeacherRepo interface {
	Create(dbc dbctx.Context, teachers []*types.Teacher) ([]*types.Teacher, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Teacher, error)
	ListActiveBySchool(dbc dbctx.Context, schoolID uuid.UUID) ([]*types.Teacher, error)
}

type teacherRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTeacherRepo(db *gorm.DB, baseLog *logger.Logger) TeacherRepo {
	return &teacherRepo{db: db, log: baseLog.With("repo", "TeacherRepo")}
}

func (r *teacherRepo) Create(dbc dbctx.Context, teachers []*types.Teacher) ([]*types.Teacher, error) {
	if len(teachers) == 0 {
		return []*types.Teacher{}, nil
	}
	if err := dbc.DB(r.db).Create(&teachers).Error; err != nil {
		return nil, err
	}
	return teachers, nil
}

func (r *teacherRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Teacher, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.Teacher
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *teacherRepo) ListActiveBySchool(dbc dbctx.Context, schoolID uuid.UUID) ([]*types.Teacher, error) {
	var out []*types.Teacher
	if err := dbc.DB(r.db).
		Where("school_id = ? AND is_active = ?", schoolID, true).
		Order("emp_no").Order("id").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
