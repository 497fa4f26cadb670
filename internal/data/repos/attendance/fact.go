package attendance

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/attendance-backend/internal/domain"
	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

type ClassStatusCount = attendance.ClassStatusCount

type FactRepo interface {
	Upsert(dbc dbctx.Context, fact *types.AttendanceFact) error
	InsertIfAbsent(dbc dbctx.Context, fact *types.AttendanceFact) (bool, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AttendanceFact, error)
	GetByNaturalKey(dbc dbctx.Context, studentID uuid.UUID, date time.Time) (*types.AttendanceFact, error)
	Exists(dbc dbctx.Context, studentID uuid.UUID, date time.Time) (bool, error)
	DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error)
	Find(dbc dbctx.Context, f attendance.FactFilter) ([]*types.AttendanceFact, error)
	Count(dbc dbctx.Context, f attendance.FactFilter) (int64, error)
	FindInBatches(dbc dbctx.Context, f attendance.FactFilter, batchSize int, fn func(batch []*types.AttendanceFact) error) error
	CountByClassAndStatus(dbc dbctx.Context, schoolID uuid.UUID, date time.Time) ([]ClassStatusCount, error)
}

type factRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFactRepo(db *gorm.DB, baseLog *logger.Logger) FactRepo {
	return &factRepo{db: db, log: baseLog.With("repo", "AttendanceFactRepo")}
}

var upsertColumns = []string{
	"school_id",
	"status",
	"note",
	"marked_at",
	"marked_by_teacher_id",
	"is_holiday",
	"updated_at",
}

func naturalKey() []clause.Column {
	cols := domainagg.AttendanceLedgerContract.NaturalKey
	out := make([]clause.Column, 0, len(cols))
	for _, c := range cols {
		out = append(out, clause.Column{Name: c})
	}
	return out
}

// Upsert is a single INSERT ... ON CONFLICT (date, student_id) DO UPDATE. fact.ID is only
// meaningful when the row was inserted; callers re-read by natural key for the surviving ID.
func (r *factRepo) Upsert(dbc dbctx.Context, fact *types.AttendanceFact) error {
	if fact == nil {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   naturalKey(),
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(fact).Error
}

func (r *factRepo) InsertIfAbsent(dbc dbctx.Context, fact *types.AttendanceFact) (bool, error) {
	if fact == nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: naturalKey(), DoNothing: true}).
		Create(fact)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *factRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.AttendanceFact, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.AttendanceFact
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *factRepo) GetByNaturalKey(dbc dbctx.Context, studentID uuid.UUID, date time.Time) (*types.AttendanceFact, error) {
	var out []*types.AttendanceFact
	if err := dbc.DB(r.db).
		Where("student_id = ? AND date = ?", studentID, attendance.DateOf(date)).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *factRepo) Exists(dbc dbctx.Context, studentID uuid.UUID, date time.Time) (bool, error) {
	var count int64
	if err := dbc.DB(r.db).
		Model(&types.AttendanceFact{}).
		Where("student_id = ? AND date = ?", studentID, attendance.DateOf(date)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *factRepo) DeleteByID(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.AttendanceFact{})
	return res.RowsAffected, res.Error
}

func (r *factRepo) Find(dbc dbctx.Context, f attendance.FactFilter) ([]*types.AttendanceFact, error) {
	var out []*types.AttendanceFact
	q := applyFilter(dbc.DB(r.db).Model(&types.AttendanceFact{}).Select(factTable+".*"), f)
	q = applyPage(applyOrder(q, f), f)
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *factRepo) Count(dbc dbctx.Context, f attendance.FactFilter) (int64, error) {
	var count int64
	if err := applyFilter(dbc.DB(r.db).Model(&types.AttendanceFact{}), f).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *factRepo) FindInBatches(dbc dbctx.Context, f attendance.FactFilter, batchSize int, fn func(batch []*types.AttendanceFact) error) error {
	if fn == nil {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	var batch []*types.AttendanceFact
	q := applyFilter(dbc.DB(r.db).Model(&types.AttendanceFact{}).Select(factTable+".*"), f)
	res := q.FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
		return fn(batch)
	})
	return res.Error
}

func (r *factRepo) CountByClassAndStatus(dbc dbctx.Context, schoolID uuid.UUID, date time.Time) ([]ClassStatusCount, error) {
	var rows []ClassStatusCount
	err := dbc.DB(r.db).
		Table(factTable).
		Select("student.standard AS standard, student.section AS section, "+factTable+".status AS status, COUNT(*) AS count").
		Joins("JOIN student ON student.id = "+factTable+".student_id").
		Where(factTable+".school_id = ? AND "+factTable+".date = ?", schoolID, attendance.DateOf(date)).
		Group("student.standard, student.section, " + factTable + ".status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
