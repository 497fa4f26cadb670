package roster

import (
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/attendance-backend/internal/domain"
	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

type StudentRepo interface {
	Create(dbc dbctx.Context, students []*types.Student) ([]*types.Student, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Student, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Student, error)
	ListActiveBySchool(dbc dbctx.Context, schoolID uuid.UUID) ([]*types.Student, error)
	ListActiveByClass(dbc dbctx.Context, schoolID uuid.UUID, standard string, section *string) ([]*types.Student, error)
	CountActiveByClass(dbc dbctx.Context, schoolID uuid.UUID, standard string, section *string) (int64, error)
	ListStandards(dbc dbctx.Context, schoolID uuid.UUID) ([]string, error)
	ListSections(dbc dbctx.Context, schoolID uuid.UUID, standard string) ([]string, error)
	SetActive(dbc dbctx.Context, id uuid.UUID, active bool) error
}

type studentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	return &studentRepo{db: db, log: baseLog.With("repo", "StudentRepo")}
}

func (r *studentRepo) Create(dbc dbctx.Context, students []*types.Student) ([]*types.Student, error) {
	if len(students) == 0 {
		return []*types.Student{}, nil
	}
	if err := dbc.DB(r.db).Create(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Student, error) {
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *studentRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Student, error) {
	var out []*types.Student
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// rosterOrder keeps roster listings stable so daily marking results line up with the register.
func rosterOrder(q *gorm.DB) *gorm.DB {
	return q.Order("standard").Order("section").Order("roll_no").Order("first_name").Order("id")
}

func (r *studentRepo) ListActiveBySchool(dbc dbctx.Context, schoolID uuid.UUID) ([]*types.Student, error) {
	var out []*types.Student
	q := dbc.DB(r.db).Where("school_id = ? AND is_active = ?", schoolID, true)
	if err := rosterOrder(q).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *studentRepo) classQuery(dbc dbctx.Context, schoolID uuid.UUID, standard string, section *string) *gorm.DB {
	q := dbc.DB(r.db).Model(&types.Student{}).
		Where("school_id = ? AND is_active = ? AND standard = ?", schoolID, true, standard)
	if section != nil {
		q = q.Where("section = ?", *section)
	}
	return q
}

// ListActiveByClass matches every section of standard when section is nil.
func (r *studentRepo) ListActiveByClass(dbc dbctx.Context, schoolID uuid.UUID, standard string, section *string) ([]*types.Student, error) {
	var out []*types.Student
	if err := rosterOrder(r.classQuery(dbc, schoolID, standard, section)).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *studentRepo) CountActiveByClass(dbc dbctx.Context, schoolID uuid.UUID, standard string, section *string) (int64, error) {
	var count int64
	if err := r.classQuery(dbc, schoolID, standard, section).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *studentRepo) ListStandards(dbc dbctx.Context, schoolID uuid.UUID) ([]string, error) {
	var out []string
	if err := dbc.DB(r.db).Model(&types.Student{}).
		Where("school_id = ? AND is_active = ?", schoolID, true).
		Distinct().
		Pluck("standard", &out).Error; err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (r *studentRepo) ListSections(dbc dbctx.Context, schoolID uuid.UUID, standard string) ([]string, error) {
	var out []string
	if err := dbc.DB(r.db).Model(&types.Student{}).
		Where("school_id = ? AND is_active = ? AND standard = ? AND section IS NOT NULL", schoolID, true, standard).
		Distinct().
		Pluck("section", &out).Error; err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (r *studentRepo) SetActive(dbc dbctx.Context, id uuid.UUID, active bool) error {
	return dbc.DB(r.db).Model(&types.Student{}).Where("id = ?", id).Update("is_active", active).Error
}
