package roster

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/attendance-backend/internal/domain"
	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

type SchoolRepo interface {
	Create(dbc dbctx.Context, schools []*types.School) ([]*types.School, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.School, error)
	List(dbc dbctx.Context) ([]*types.School, error)
}

type schoolRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSchoolRepo(db *gorm.DB, baseLog *logger.Logger) SchoolRepo {
	return &schoolRepo{db: db, log: baseLog.With("repo", "SchoolRepo")}
}

func (r *schoolRepo) Create(dbc dbctx.Context, schools []*types.School) ([]*types.School, error) {
	if len(schools) == 0 {
		return []*types.School{}, nil
	}
	if err := dbc.DB(r.db).Create(&schools).Error; err != nil {
		return nil, err
	}
	return schools, nil
}

func (r *schoolRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.School, error) {
	var out []*types.School
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *schoolRepo) List(dbc dbctx.Context) ([]*types.School, error) {
	var out []*types.School
	if err := dbc.DB(r.db).Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
