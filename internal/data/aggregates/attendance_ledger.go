package aggregates

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/yungbote/attendance-backend/internal/data/repos"
	types "github.com/yungbote/attendance-backend/internal/domain"
	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
)

type AttendanceLedgerDeps struct {
	BaseDeps
	Facts    repos.AttendanceFactRepo
	Students repos.StudentRepo
	Teachers repos.TeacherRepo
	Clock    clockwork.Clock
}

type attendanceLedger struct {
	deps AttendanceLedgerDeps
}

func NewAttendanceLedger(deps AttendanceLedgerDeps) domainagg.AttendanceLedger {
	deps.BaseDeps = deps.BaseDeps.withDefaults()
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &attendanceLedger{deps: deps}
}

func (a *attendanceLedger) Contract() domainagg.Contract {
	return domainagg.AttendanceLedgerContract
}

func validateUpsertInput(in domainagg.UpsertFactInput) error {
	switch {
	case in.StudentID == uuid.Nil:
		return ValidationError("student_id is required")
	case in.Date.IsZero():
		return ValidationError("date is required")
	case !in.Status.Valid():
		return ValidationError(fmt.Sprintf("invalid status %q", in.Status))
	case utf8.RuneCountInString(in.Note) > attendance.MaxNoteLength:
		return ValidationError(fmt.Sprintf("note exceeds %d characters", attendance.MaxNoteLength))
	}
	return nil
}

// schoolFor checks the student (and marker, when given) inside the write transaction
// and returns the student's school.
func (a *attendanceLedger) schoolFor(dbc dbctx.Context, in domainagg.UpsertFactInput) (uuid.UUID, error) {
	st, err := a.deps.Students.GetByID(dbc, in.StudentID)
	if err != nil {
		return uuid.Nil, err
	}
	if st == nil {
		return uuid.Nil, NotFoundError(fmt.Sprintf("student %s not found", in.StudentID))
	}
	if in.MarkedBy != nil && *in.MarkedBy != uuid.Nil {
		tch, err := a.deps.Teachers.GetByID(dbc, *in.MarkedBy)
		if err != nil {
			return uuid.Nil, err
		}
		if tch == nil {
			return uuid.Nil, NotFoundError(fmt.Sprintf("teacher %s not found", *in.MarkedBy))
		}
	}
	return st.SchoolID, nil
}

func (a *attendanceLedger) buildFact(in domainagg.UpsertFactInput, schoolID uuid.UUID) *types.AttendanceFact {
	markedAt := in.MarkedAt
	if markedAt.IsZero() {
		markedAt = a.deps.Clock.Now()
	}
	var markedBy *uuid.UUID
	if in.MarkedBy != nil && *in.MarkedBy != uuid.Nil {
		id := *in.MarkedBy
		markedBy = &id
	}
	return &types.AttendanceFact{
		Date:              attendance.DateOf(in.Date),
		StudentID:         in.StudentID,
		SchoolID:          schoolID,
		Status:            in.Status,
		Note:              in.Note,
		MarkedAt:          markedAt.UTC(),
		IsHoliday:         in.IsHoliday,
		MarkedByTeacherID: markedBy,
	}
}

func (a *attendanceLedger) upsertTx(dbc dbctx.Context, in domainagg.UpsertFactInput) (*types.AttendanceFact, error) {
	schoolID, err := a.schoolFor(dbc, in)
	if err != nil {
		return nil, err
	}
	if err := a.deps.Facts.Upsert(dbc, a.buildFact(in, schoolID)); err != nil {
		return nil, err
	}
	got, err := a.deps.Facts.GetByNaturalKey(dbc, in.StudentID, in.Date)
	if err != nil {
		return nil, err
	}
	if got == nil {
		return nil, InvariantError("upserted fact is not readable by natural key")
	}
	return got, nil
}

func (a *attendanceLedger) Upsert(ctx context.Context, in domainagg.UpsertFactInput) (*types.AttendanceFact, error) {
	const op = "attendance_ledger.upsert"
	if err := validateUpsertInput(in); err != nil {
		return nil, MapError(op, err)
	}
	var out *types.AttendanceFact
	err := executeWrite(ctx, a.deps.BaseDeps, op, func(dbc dbctx.Context) error {
		got, err := a.upsertTx(dbc, in)
		out = got
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *attendanceLedger) InsertIfAbsent(ctx context.Context, in domainagg.UpsertFactInput) (bool, error) {
	const op = "attendance_ledger.insert_if_absent"
	if err := validateUpsertInput(in); err != nil {
		return false, MapError(op, err)
	}
	created := false
	err := executeWrite(ctx, a.deps.BaseDeps, op, func(dbc dbctx.Context) error {
		schoolID, err := a.schoolFor(dbc, in)
		if err != nil {
			return err
		}
		created, err = a.deps.Facts.InsertIfAbsent(dbc, a.buildFact(in, schoolID))
		return err
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (a *attendanceLedger) Replace(ctx context.Context, factID uuid.UUID, in domainagg.UpsertFactInput, preserveID bool) (domainagg.ReplaceFactResult, error) {
	const op = "attendance_ledger.replace"
	if factID == uuid.Nil {
		return domainagg.ReplaceFactResult{}, MapError(op, ValidationError("fact id is required"))
	}
	if err := validateUpsertInput(in); err != nil {
		return domainagg.ReplaceFactResult{}, MapError(op, err)
	}
	var res domainagg.ReplaceFactResult
	err := executeWrite(ctx, a.deps.BaseDeps, op, func(dbc dbctx.Context) error {
		prev, err := a.deps.Facts.GetByID(dbc, factID)
		if err != nil {
			return err
		}
		if prev == nil {
			return NotFoundError(fmt.Sprintf("attendance fact %s not found", factID))
		}
		sameKey := prev.StudentID == in.StudentID && prev.Day().Equal(attendance.NormalizeDate(in.Date))
		if !preserveID || !sameKey {
			if _, err := a.deps.Facts.DeleteByID(dbc, prev.ID); err != nil {
				return err
			}
		}
		cur, err := a.upsertTx(dbc, in)
		if err != nil {
			return err
		}
		res = domainagg.ReplaceFactResult{Previous: prev, Current: cur}
		return nil
	})
	if err != nil {
		return domainagg.ReplaceFactResult{}, err
	}
	return res, nil
}

func (a *attendanceLedger) Delete(ctx context.Context, factID uuid.UUID) (*types.AttendanceFact, error) {
	const op = "attendance_ledger.delete"
	var deleted *types.AttendanceFact
	err := executeWrite(ctx, a.deps.BaseDeps, op, func(dbc dbctx.Context) error {
		prev, err := a.deps.Facts.GetByID(dbc, factID)
		if err != nil {
			return err
		}
		if prev == nil {
			return NotFoundError(fmt.Sprintf("attendance fact %s not found", factID))
		}
		n, err := a.deps.Facts.DeleteByID(dbc, factID)
		if err != nil {
			return err
		}
		if n == 0 {
			return NotFoundError(fmt.Sprintf("attendance fact %s not found", factID))
		}
		deleted = prev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (a *attendanceLedger) GetByID(ctx context.Context, factID uuid.UUID) (*types.AttendanceFact, error) {
	var out *types.AttendanceFact
	err := executeRead(ctx, a.deps.BaseDeps, "attendance_ledger.get_by_id", func(dbc dbctx.Context) error {
		var err error
		out, err = a.deps.Facts.GetByID(dbc, factID)
		return err
	})
	return out, err
}

func (a *attendanceLedger) Get(ctx context.Context, studentID uuid.UUID, date time.Time) (*types.AttendanceFact, error) {
	var out *types.AttendanceFact
	err := executeRead(ctx, a.deps.BaseDeps, "attendance_ledger.get", func(dbc dbctx.Context) error {
		var err error
		out, err = a.deps.Facts.GetByNaturalKey(dbc, studentID, date)
		return err
	})
	return out, err
}

func (a *attendanceLedger) Exists(ctx context.Context, studentID uuid.UUID, date time.Time) (bool, error) {
	var ok bool
	err := executeRead(ctx, a.deps.BaseDeps, "attendance_ledger.exists", func(dbc dbctx.Context) error {
		var err error
		ok, err = a.deps.Facts.Exists(dbc, studentID, date)
		return err
	})
	return ok, err
}

func (a *attendanceLedger) Query(ctx context.Context, f attendance.FactFilter) ([]*types.AttendanceFact, error) {
	var out []*types.AttendanceFact
	err := executeRead(ctx, a.deps.BaseDeps, "attendance_ledger.query", func(dbc dbctx.Context) error {
		var err error
		out, err = a.deps.Facts.Find(dbc, f)
		return err
	})
	return out, err
}

func (a *attendanceLedger) Page(ctx context.Context, f attendance.FactFilter) (attendance.Page, error) {
	const op = "attendance_ledger.page"
	if f.Size <= 0 {
		return attendance.Page{}, MapError(op, ValidationError("page size must be positive"))
	}
	if f.Page < 0 {
		return attendance.Page{}, MapError(op, ValidationError("page must not be negative"))
	}
	page := attendance.Page{Page: f.Page, Size: f.Size}
	err := executeRead(ctx, a.deps.BaseDeps, op, func(dbc dbctx.Context) error {
		total, err := a.deps.Facts.Count(dbc, f)
		if err != nil {
			return err
		}
		items, err := a.deps.Facts.Find(dbc, f)
		if err != nil {
			return err
		}
		page.TotalElements = total
		page.TotalPages = int((total + int64(f.Size) - 1) / int64(f.Size))
		page.Items = items
		return nil
	})
	if err != nil {
		return attendance.Page{}, err
	}
	if page.Items == nil {
		page.Items = []*types.AttendanceFact{}
	}
	return page, nil
}

// Iterate streams matching facts in batches. The timeout applies per call, so callers
// iterating very large ranges should raise BaseDeps.Timeout.
func (a *attendanceLedger) Iterate(ctx context.Context, f attendance.FactFilter, batchSize int, fn func(batch []*types.AttendanceFact) error) error {
	return executeRead(ctx, a.deps.BaseDeps, "attendance_ledger.iterate", func(dbc dbctx.Context) error {
		return a.deps.Facts.FindInBatches(dbc, f, batchSize, fn)
	})
}

func (a *attendanceLedger) CountByClassAndStatus(ctx context.Context, schoolID uuid.UUID, date time.Time) ([]attendance.ClassStatusCount, error) {
	var out []attendance.ClassStatusCount
	err := executeRead(ctx, a.deps.BaseDeps, "attendance_ledger.count_by_class", func(dbc dbctx.Context) error {
		var err error
		out, err = a.deps.Facts.CountByClassAndStatus(dbc, schoolID, date)
		return err
	})
	return out, err
}
