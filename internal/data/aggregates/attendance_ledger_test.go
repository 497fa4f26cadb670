package aggregates_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/yungbote/attendance-backend/internal/data/aggregates"
	aggtestutil "github.com/yungbote/attendance-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/attendance-backend/internal/data/repos"
	"github.com/yungbote/attendance-backend/internal/data/repos/testutil"
	types "github.com/yungbote/attendance-backend/internal/domain"
	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/platform/dbctx"
)

type ledgerFixture struct {
	db      *gorm.DB
	ledger  domainagg.AttendanceLedger
	hooks   *aggtestutil.HooksRecorder
	clock   *clockwork.FakeClock
	school  *types.School
	teacher *types.Teacher
	student *types.Student
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	hooks := &aggtestutil.HooksRecorder{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))

	school := testutil.SeedSchool(t, ctx, db, "ledger")
	return &ledgerFixture{
		db: db,
		ledger: aggregates.NewAttendanceLedger(aggregates.AttendanceLedgerDeps{
			BaseDeps: aggregates.BaseDeps{DB: db, Log: log, Hooks: hooks},
			Facts:    repos.NewAttendanceFactRepo(db, log),
			Students: repos.NewStudentRepo(db, log),
			Teachers: repos.NewTeacherRepo(db, log),
			Clock:    clock,
		}),
		hooks:   hooks,
		clock:   clock,
		school:  school,
		teacher: testutil.SeedTeacher(t, ctx, db, school.ID, "T-7"),
		student: testutil.SeedStudent(t, ctx, db, school.ID, "5", testutil.Ptr("A"), 7),
	}
}

func TestAttendanceLedgerUpsertIsIdempotentAndOverwrites(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()
	day := testutil.Day(2024, 3, 4)

	first, err := fx.ledger.Upsert(ctx, domainagg.UpsertFactInput{
		StudentID: fx.student.ID, Date: day, Status: attendance.StatusPresent, MarkedBy: &fx.teacher.ID,
	})
	if err != nil {
		t.Fatalf("Upsert present: %v", err)
	}
	if first.SchoolID != fx.school.ID {
		t.Fatalf("school must be denormalized from roster, got %s", first.SchoolID)
	}
	if !first.MarkedAt.Equal(fx.clock.Now()) {
		t.Fatalf("marked_at should default to the clock, got %v", first.MarkedAt)
	}

	again, err := fx.ledger.Upsert(ctx, domainagg.UpsertFactInput{
		StudentID: fx.student.ID, Date: day, Status: attendance.StatusPresent, MarkedBy: &fx.teacher.ID,
	})
	if err != nil || again.ID != first.ID {
		t.Fatalf("repeat upsert: id=%v err=%v", again, err)
	}

	fx.clock.Advance(time.Hour)
	absent, err := fx.ledger.Upsert(ctx, domainagg.UpsertFactInput{
		StudentID: fx.student.ID, Date: day, Status: attendance.StatusAbsent, Note: "called in sick",
	})
	if err != nil {
		t.Fatalf("Upsert absent: %v", err)
	}
	if absent.ID != first.ID || absent.Status != attendance.StatusAbsent || absent.Note != "called in sick" {
		t.Fatalf("unexpected overwrite result: %+v", absent)
	}
	if absent.MarkedByTeacherID != nil {
		t.Fatalf("marker should be overwritten with nil, got %v", absent.MarkedByTeacherID)
	}

	rows, err := fx.ledger.Query(ctx, attendance.FactFilter{}.ForStudent(fx.student.ID))
	if err != nil || len(rows) != 1 {
		t.Fatalf("exactly one fact expected, got %d err=%v", len(rows), err)
	}
	if st := fx.hooks.StatusesFor("attendance_ledger.upsert"); len(st) != 3 || st[0] != "success" {
		t.Fatalf("hooks not observed: %v", st)
	}
}

func TestAttendanceLedgerUpsertRejectsUnknownRefs(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()
	day := testutil.Day(2024, 3, 4)

	_, err := fx.ledger.Upsert(ctx, domainagg.UpsertFactInput{StudentID: uuid.New(), Date: day, Status: attendance.StatusPresent})
	if !domainagg.IsNotFound(err) {
		t.Fatalf("unknown student: want not_found, got %v", err)
	}
	ghost := uuid.New()
	_, err = fx.ledger.Upsert(ctx, domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: day, Status: attendance.StatusPresent, MarkedBy: &ghost})
	if !domainagg.IsNotFound(err) {
		t.Fatalf("unknown teacher: want not_found, got %v", err)
	}
	_, err = fx.ledger.Upsert(ctx, domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: day, Status: "EXCUSED"})
	if !domainagg.IsValidation(err) {
		t.Fatalf("bad status: want validation, got %v", err)
	}
	if ok, _ := fx.ledger.Exists(ctx, fx.student.ID, day); ok {
		t.Fatalf("failed writes must not persist")
	}
}

func TestAttendanceLedgerConcurrentUpsertsKeepOneFact(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()
	day := testutil.Day(2024, 3, 5)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := attendance.StatusPresent
			if i%2 == 1 {
				status = attendance.StatusLate
			}
			_, errs[i] = fx.ledger.Upsert(ctx, domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: day, Status: status})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}
	rows, err := fx.ledger.Query(ctx, attendance.FactFilter{}.ForStudent(fx.student.ID).On(day))
	if err != nil || len(rows) != 1 {
		t.Fatalf("want one fact, got %d err=%v", len(rows), err)
	}
}

func TestAttendanceLedgerInsertIfAbsent(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()
	day := testutil.Day(2024, 3, 6)

	if _, err := fx.ledger.Upsert(ctx, domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: day, Status: attendance.StatusAbsent}); err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
	created, err := fx.ledger.InsertIfAbsent(ctx, domainagg.UpsertFactInput{
		StudentID: fx.student.ID, Date: day, Status: attendance.StatusHoliday, Note: "Diwali", IsHoliday: true,
	})
	if err != nil || created {
		t.Fatalf("InsertIfAbsent over existing: created=%v err=%v", created, err)
	}
	got, err := fx.ledger.Get(ctx, fx.student.ID, day)
	if err != nil || got.Status != attendance.StatusAbsent {
		t.Fatalf("existing fact must survive: %+v err=%v", got, err)
	}
}

func TestAttendanceLedgerReplace(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()
	day := testutil.Day(2024, 3, 7)

	orig, err := fx.ledger.Upsert(ctx, domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: day, Status: attendance.StatusAbsent})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	kept, err := fx.ledger.Replace(ctx, orig.ID, domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: day, Status: attendance.StatusLate}, true)
	if err != nil {
		t.Fatalf("Replace preserve: %v", err)
	}
	if kept.Current.ID != orig.ID || kept.Current.Status != attendance.StatusLate || kept.Previous.Status != attendance.StatusAbsent {
		t.Fatalf("preserve-id replace: %+v", kept)
	}

	churned, err := fx.ledger.Replace(ctx, orig.ID, domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: day, Status: attendance.StatusPresent}, false)
	if err != nil {
		t.Fatalf("Replace churn: %v", err)
	}
	if churned.Current.ID == orig.ID {
		t.Fatalf("delete+create replace must assign a new id")
	}

	moved, err := fx.ledger.Replace(ctx, churned.Current.ID, domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: day.AddDate(0, 0, 1), Status: attendance.StatusPresent}, true)
	if err != nil {
		t.Fatalf("Replace moved date: %v", err)
	}
	if ok, _ := fx.ledger.Exists(ctx, fx.student.ID, day); ok {
		t.Fatalf("old natural key must be removed when the date changes")
	}
	if !moved.Current.Day().Equal(day.AddDate(0, 0, 1)) {
		t.Fatalf("moved fact date: %v", moved.Current.Day())
	}

	_, err = fx.ledger.Replace(ctx, uuid.New(), domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: day, Status: attendance.StatusPresent}, true)
	if !domainagg.IsNotFound(err) {
		t.Fatalf("missing fact: want not_found, got %v", err)
	}
}

func TestAttendanceLedgerReplaceRollsBackOnFailure(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()
	day := testutil.Day(2024, 3, 8)

	orig, err := fx.ledger.Upsert(ctx, domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: day, Status: attendance.StatusAbsent})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	ghost := uuid.New()
	_, err = fx.ledger.Replace(ctx, orig.ID, domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: day, Status: attendance.StatusPresent, MarkedBy: &ghost}, false)
	if !domainagg.IsNotFound(err) {
		t.Fatalf("want not_found for unknown marker, got %v", err)
	}
	got, err := fx.ledger.GetByID(ctx, orig.ID)
	if err != nil || got == nil || got.Status != attendance.StatusAbsent {
		t.Fatalf("failed correction must leave the original fact: %+v err=%v", got, err)
	}
}

func TestAttendanceLedgerDeleteAndPage(t *testing.T) {
	fx := newLedgerFixture(t)
	ctx := context.Background()

	var last *types.AttendanceFact
	for d := 1; d <= 5; d++ {
		f, err := fx.ledger.Upsert(ctx, domainagg.UpsertFactInput{StudentID: fx.student.ID, Date: testutil.Day(2024, 4, d), Status: attendance.StatusPresent})
		if err != nil {
			t.Fatalf("seed %d: %v", d, err)
		}
		last = f
	}

	page, err := fx.ledger.Page(ctx, attendance.FactFilter{}.
		ForStudent(fx.student.ID).
		Between(attendance.NewDateRange(testutil.Day(2024, 4, 1), testutil.Day(2024, 4, 30))).
		Paged(0, 2))
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if page.TotalElements != 5 || page.TotalPages != 3 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: total=%d pages=%d items=%d", page.TotalElements, page.TotalPages, len(page.Items))
	}
	if !page.Items[0].Day().Equal(testutil.Day(2024, 4, 5)) {
		t.Fatalf("page must be date-descending, first=%v", page.Items[0].Day())
	}

	deleted, err := fx.ledger.Delete(ctx, last.ID)
	if err != nil || deleted.ID != last.ID {
		t.Fatalf("Delete: %+v err=%v", deleted, err)
	}
	if _, err := fx.ledger.Delete(ctx, last.ID); !domainagg.IsNotFound(err) {
		t.Fatalf("second delete: want not_found, got %v", err)
	}

	total := 0
	err = fx.ledger.Iterate(ctx, attendance.FactFilter{}.ForStudent(fx.student.ID), 2, func(batch []*types.AttendanceFact) error {
		total += len(batch)
		return nil
	})
	if err != nil || total != 4 {
		t.Fatalf("Iterate: total=%d err=%v", total, err)
	}
}

func TestAttendanceLedgerStoreFaultsAreRetryable(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	school := testutil.SeedSchool(t, ctx, db, "faults")
	student := testutil.SeedStudent(t, ctx, db, school.ID, "5", nil, 1)

	runner := &aggtestutil.FaultyTxRunner{
		Inner:     aggregates.NewGormTxRunner(db),
		BeginErrs: []error{errors.New("connection refused")},
		CommitErr: errors.New("database is locked"),
	}
	hooks := &aggtestutil.HooksRecorder{}
	ledger := aggregates.NewAttendanceLedger(aggregates.AttendanceLedgerDeps{
		BaseDeps: aggregates.BaseDeps{DB: db, Log: log, Runner: runner, Hooks: hooks},
		Facts:    repos.NewAttendanceFactRepo(db, log),
		Students: repos.NewStudentRepo(db, log),
		Teachers: repos.NewTeacherRepo(db, log),
	})
	in := domainagg.UpsertFactInput{StudentID: student.ID, Date: testutil.Day(2024, 3, 4), Status: attendance.StatusPresent}

	if _, err := ledger.Upsert(ctx, in); !domainagg.IsRetryable(err) {
		t.Fatalf("store unavailable must be retryable, got %v", err)
	}
	if _, err := ledger.Upsert(ctx, in); !domainagg.IsRetryable(err) {
		t.Fatalf("locked commit must be retryable, got %v", err)
	}
	calls, bodies, committed := runner.Counts()
	if calls != 2 || bodies != 1 || committed != 0 || len(hooks.Retries) != 2 {
		t.Fatalf("calls=%d bodies=%d committed=%d retries=%v", calls, bodies, committed, hooks.Retries)
	}

	exists, err := ledger.Exists(ctx, student.ID, in.Date)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatalf("failed commit must not leave a fact behind")
	}
}

func TestLedgerTxRunnerWithLockTimeoutCommits(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	log := testutil.Logger(t)
	school := testutil.SeedSchool(t, ctx, db, "lockwait")
	student := testutil.SeedStudent(t, ctx, db, school.ID, "5", nil, 1)

	ledger := aggregates.NewAttendanceLedger(aggregates.AttendanceLedgerDeps{
		BaseDeps: aggregates.BaseDeps{DB: db, Log: log, Runner: aggregates.NewLedgerTxRunner(db, 250*time.Millisecond)},
		Facts:    repos.NewAttendanceFactRepo(db, log),
		Students: repos.NewStudentRepo(db, log),
		Teachers: repos.NewTeacherRepo(db, log),
	})
	in := domainagg.UpsertFactInput{StudentID: student.ID, Date: testutil.Day(2024, 3, 4), Status: attendance.StatusAbsent}
	if _, err := ledger.Upsert(ctx, in); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	exists, err := ledger.Exists(ctx, student.ID, in.Date)
	if err != nil || !exists {
		t.Fatalf("exists=%v err=%v", exists, err)
	}

	var nilRunner aggregates.TxRunner = aggregates.NewLedgerTxRunner(nil, time.Second)
	err = nilRunner.InTx(ctx, func(dbctx.Context) error { return nil })
	if domainagg.CodeOf(err) != domainagg.CodeInternal {
		t.Fatalf("nil db must be internal, got %v", err)
	}
}
