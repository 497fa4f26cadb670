package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/attendance-backend/internal/cache"
	types "github.com/yungbote/attendance-backend/internal/domain"
	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/observability"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
	"github.com/yungbote/attendance-backend/internal/realtime"
)

const (
	DefaultRosterConcurrency = 4
	holidayNote              = "Holiday"
)

// MarkInput is one attendance mark. TeacherID is optional.
type MarkInput struct {
	StudentID uuid.UUID         `json:"student_id" validate:"required"`
	Date      time.Time         `json:"date" validate:"required"`
	Status    attendance.Status `json:"status" validate:"required,attendance_status"`
	Note      string            `json:"note" validate:"max=500"`
	TeacherID *uuid.UUID        `json:"teacher_id,omitempty"`
}

type DailyRosterInput struct {
	SchoolID         uuid.UUID   `json:"school_id" validate:"required"`
	Date             time.Time   `json:"date" validate:"required"`
	AbsentStudentIDs []uuid.UUID `json:"absent_student_ids"`
	IsHoliday        bool        `json:"is_holiday"`
	TeacherID        *uuid.UUID  `json:"teacher_id,omitempty"`
}

// ItemError describes one failed item of a batch.
type ItemError struct {
	Index     int       `json:"index"`
	StudentID uuid.UUID `json:"student_id"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Err       error     `json:"-"`
}

type BatchResult struct {
	Total     int                     `json:"total"`
	Succeeded int                     `json:"succeeded"`
	Failed    int                     `json:"failed"`
	Facts     []*types.AttendanceFact `json:"facts"`
	Errors    []ItemError             `json:"errors"`
}

type DailyMarkResult struct {
	Date          time.Time               `json:"date"`
	IsHoliday     bool                    `json:"is_holiday"`
	TotalStudents int                     `json:"total_students"`
	SuccessCount  int                     `json:"success_count"`
	FailureCount  int                     `json:"failure_count"`
	Facts         []*types.AttendanceFact `json:"facts"`
	Errors        []ItemError             `json:"errors"`
}

type HolidayResult struct {
	Date          time.Time   `json:"date"`
	TotalStudents int         `json:"total_students"`
	Created       int         `json:"created"`
	Skipped       int         `json:"skipped"`
	Failed        int         `json:"failed"`
	Errors        []ItemError `json:"errors"`
}

type MarkingService interface {
	MarkOne(ctx context.Context, in MarkInput) (*types.AttendanceFact, error)
	BulkMark(ctx context.Context, reqs []MarkInput, teacherID *uuid.UUID) (*BatchResult, error)
	MarkDailyRoster(ctx context.Context, in DailyRosterInput) (*DailyMarkResult, error)
	MarkHoliday(ctx context.Context, schoolID uuid.UUID, date time.Time, reason string) (*HolidayResult, error)
	DeleteFact(ctx context.Context, factID uuid.UUID) error
	Correct(ctx context.Context, factID uuid.UUID, in MarkInput) (*types.AttendanceFact, error)
	RecordExists(ctx context.Context, studentID uuid.UUID, date time.Time) (bool, error)
	ListFacts(ctx context.Context, r attendance.DateRange, page, size int) (attendance.Page, error)
}

type MarkingDeps struct {
	Log      *logger.Logger
	Ledger   domainagg.AttendanceLedger
	Roster   RosterProvider
	Cache    *cache.Layer
	Events   EventPublisher
	Metrics  *observability.Metrics
	Clock    clockwork.Clock
	Calendar *Calendar

	RosterConcurrency      int
	PreserveIDOnCorrection bool
}

type markingService struct {
	log      *logger.Logger
	ledger   domainagg.AttendanceLedger
	roster   RosterProvider
	cache    *cache.Layer
	events   EventPublisher
	metrics  *observability.Metrics
	clock    clockwork.Clock
	calendar Calendar
	validate *validator.Validate

	concurrency int
	preserveID  bool
}

func NewMarkingService(deps MarkingDeps) MarkingService {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Events == nil {
		deps.Events = noopPublisher{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	cal := DefaultCalendar()
	if deps.Calendar != nil {
		cal = *deps.Calendar
	}
	if deps.RosterConcurrency <= 0 {
		deps.RosterConcurrency = DefaultRosterConcurrency
	}
	return &markingService{
		log:         deps.Log.With("service", "MarkingService"),
		ledger:      deps.Ledger,
		roster:      deps.Roster,
		cache:       deps.Cache,
		events:      deps.Events,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
		calendar:    cal,
		validate:    newValidator(),
		concurrency: deps.RosterConcurrency,
		preserveID:  deps.PreserveIDOnCorrection,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(attendance.Status)
		return ok && s.Valid()
	})
	return v
}

// validationError turns validator output into a CodeValidation error.
func validationError(op string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s exceeds %s characters", fe.Field(), fe.Param()))
		case "attendance_status":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a valid status", fe.Field(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return domainagg.NewError(domainagg.CodeValidation, op, strings.Join(msgs, "; "), err)
}

func itemError(i int, studentID uuid.UUID, err error) ItemError {
	code := string(domainagg.CodeOf(err))
	if code == "" {
		code = string(domainagg.CodeInternal)
	}
	return ItemError{Index: i, StudentID: studentID, Code: code, Message: err.Error(), Err: err}
}

func (s *markingService) resolveTeacher(ctx context.Context, op string, id *uuid.UUID) (*types.Teacher, error) {
	if id == nil || *id == uuid.Nil {
		return nil, nil
	}
	t, err := s.roster.GetTeacher(ctx, *id)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	if t == nil || !t.IsActive {
		return nil, domainagg.Validationf(op, "teacher %s not found or inactive", *id)
	}
	return t, nil
}

func (s *markingService) resolveStudent(ctx context.Context, op string, id uuid.UUID) (*types.Student, error) {
	st, err := s.roster.GetStudent(ctx, id)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	if st == nil || !st.IsActive {
		return nil, domainagg.Validationf(op, "student %s not found or inactive", id)
	}
	return st, nil
}

// markItem validates and upserts one mark. The teacher must already be resolved when
// teacherChecked is true. No cache or event side effects.
func (s *markingService) markItem(ctx context.Context, op string, in MarkInput, teacherChecked bool) (*types.AttendanceFact, error) {
	if err := ctx.Err(); err != nil {
		return nil, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, validationError(op, err)
	}
	if _, err := s.resolveStudent(ctx, op, in.StudentID); err != nil {
		return nil, err
	}
	if !teacherChecked {
		if _, err := s.resolveTeacher(ctx, op, in.TeacherID); err != nil {
			return nil, err
		}
	}
	fact, err := s.ledger.Upsert(ctx, s.upsertInput(in))
	if domainagg.IsNotFound(err) {
		// Roster changed between the check and the write.
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "student or teacher no longer resolves", err)
	}
	return fact, err
}

func (s *markingService) upsertInput(in MarkInput) domainagg.UpsertFactInput {
	return domainagg.UpsertFactInput{
		StudentID: in.StudentID,
		Date:      attendance.NormalizeDate(in.Date),
		Status:    in.Status,
		Note:      strings.TrimSpace(in.Note),
		MarkedBy:  in.TeacherID,
		IsHoliday: in.Status == attendance.StatusHoliday,
		MarkedAt:  s.clock.Now(),
	}
}

func impactOf(facts ...*types.AttendanceFact) cache.WriteImpact {
	var w cache.WriteImpact
	for _, f := range facts {
		if f == nil {
			continue
		}
		w.StudentIDs = append(w.StudentIDs, f.StudentID)
		w.Dates = append(w.Dates, f.Day())
		if f.MarkedByTeacherID != nil {
			w.TeacherIDs = append(w.TeacherIDs, *f.MarkedByTeacherID)
		}
	}
	return w
}

func markedData(f *types.AttendanceFact) realtime.MarkedData {
	return realtime.MarkedData{
		FactID:    f.ID,
		StudentID: f.StudentID,
		Date:      f.Day().Format(attendance.DateLayout),
		Status:    f.Status.String(),
		TeacherID: f.MarkedByTeacherID,
	}
}

func (s *markingService) MarkOne(ctx context.Context, in MarkInput) (fact *types.AttendanceFact, err error) {
	const op = "marking.mark_one"
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, op, attribute.String("student_id", in.StudentID.String()))
	defer func() {
		observability.EndSpan(span, err)
		ok, failed := 1, 0
		if err != nil {
			ok, failed = 0, 1
		}
		s.metrics.ObserveMarking(op, ok, failed, time.Since(start))
	}()

	fact, err = s.markItem(ctx, op, in, false)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateForWrite(ctx, impactOf(fact))
	s.events.Publish(ctx, realtime.EventMarked, fact.SchoolID, markedData(fact))
	return fact, nil
}

func (s *markingService) BulkMark(ctx context.Context, reqs []MarkInput, teacherID *uuid.UUID) (res *BatchResult, err error) {
	const op = "marking.bulk"
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("items", len(reqs)))
	defer func() {
		observability.EndSpan(span, err)
		if res != nil {
			s.metrics.ObserveMarking(op, res.Succeeded, res.Failed, time.Since(start))
		}
	}()

	if _, err := s.resolveTeacher(ctx, op, teacherID); err != nil {
		return nil, err
	}

	res = &BatchResult{Total: len(reqs), Facts: []*types.AttendanceFact{}, Errors: []ItemError{}}
	var impact cache.WriteImpact
	schools := map[uuid.UUID]bool{}
	for i, req := range reqs {
		if teacherID != nil {
			req.TeacherID = teacherID
		}
		fact, err := s.markItem(ctx, op, req, teacherID != nil)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, itemError(i, req.StudentID, err))
			s.log.Warn("bulk mark item failed", "index", i, "student_id", req.StudentID, "error", err)
			continue
		}
		res.Succeeded++
		res.Facts = append(res.Facts, fact)
		schools[fact.SchoolID] = true
		fi := impactOf(fact)
		impact.StudentIDs = append(impact.StudentIDs, fi.StudentIDs...)
		impact.Dates = append(impact.Dates, fi.Dates...)
		impact.TeacherIDs = append(impact.TeacherIDs, fi.TeacherIDs...)
	}

	s.cache.InvalidateForWrite(ctx, impact)
	for schoolID := range schools {
		s.events.Publish(ctx, realtime.EventBulkMarked, schoolID, realtime.BatchData{
			Total: res.Total, Succeeded: res.Succeeded, Failed: res.Failed, TeacherID: teacherID,
		})
	}
	return res, nil
}

func (s *markingService) MarkDailyRoster(ctx context.Context, in DailyRosterInput) (res *DailyMarkResult, err error) {
	const op = "marking.daily_roster"
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, op,
		attribute.String("school_id", in.SchoolID.String()),
		attribute.Bool("is_holiday", in.IsHoliday),
	)
	defer func() {
		observability.EndSpan(span, err)
		if res != nil {
			s.metrics.ObserveMarking(op, res.SuccessCount, res.FailureCount, time.Since(start))
		}
	}()

	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, validationError(op, err)
	}
	date := attendance.NormalizeDate(in.Date)
	if !s.calendar.IsWorkingDay(date) {
		return nil, domainagg.Validationf(op, "%s is a %s, attendance is not taken on that day", date.Format(attendance.DateLayout), date.Weekday())
	}
	if _, err := s.resolveTeacher(ctx, op, in.TeacherID); err != nil {
		return nil, err
	}
	students, err := s.roster.ListActiveStudents(ctx, in.SchoolID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}

	absent := make(map[uuid.UUID]bool, len(in.AbsentStudentIDs))
	for _, id := range in.AbsentStudentIDs {
		absent[id] = true
	}

	facts := make([]*types.AttendanceFact, len(students))
	var (
		mu      sync.Mutex
		itemErr []ItemError
	)
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, st := range students {
		i, st := i, st
		g.Go(func() error {
			mi := MarkInput{StudentID: st.ID, Date: date, Status: attendance.StatusPresent, TeacherID: in.TeacherID}
			switch {
			case in.IsHoliday:
				mi.Status, mi.Note = attendance.StatusHoliday, holidayNote
			case absent[st.ID]:
				mi.Status = attendance.StatusAbsent
			}
			fact, err := s.markItem(ctx, op, mi, true)
			if err != nil {
				s.log.Warn("daily roster item failed", "student_id", st.ID, "date", date.Format(attendance.DateLayout), "error", err)
				mu.Lock()
				itemErr = append(itemErr, itemError(i, st.ID, err))
				mu.Unlock()
				return nil
			}
			facts[i] = fact
			return nil
		})
	}
	_ = g.Wait()

	res = &DailyMarkResult{
		Date:          date,
		IsHoliday:     in.IsHoliday,
		TotalStudents: len(students),
		Facts:         make([]*types.AttendanceFact, 0, len(students)),
		Errors:        sortItemErrors(itemErr),
	}
	for _, f := range facts {
		if f != nil {
			res.Facts = append(res.Facts, f)
		}
	}
	res.SuccessCount = len(res.Facts)
	res.FailureCount = len(res.Errors)

	s.cache.InvalidateForWrite(ctx, impactOf(res.Facts...))
	s.events.Publish(ctx, realtime.EventRosterMarked, in.SchoolID, realtime.BatchData{
		Date:      date.Format(attendance.DateLayout),
		Total:     res.TotalStudents,
		Succeeded: res.SuccessCount,
		Failed:    res.FailureCount,
		IsHoliday: in.IsHoliday,
		TeacherID: in.TeacherID,
	})
	return res, nil
}

func sortItemErrors(in []ItemError) []ItemError {
	out := make([]ItemError, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (s *markingService) MarkHoliday(ctx context.Context, schoolID uuid.UUID, date time.Time, reason string) (res *HolidayResult, err error) {
	const op = "marking.holiday"
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, op, attribute.String("school_id", schoolID.String()))
	defer func() {
		observability.EndSpan(span, err)
		if res != nil {
			s.metrics.ObserveMarking(op, res.Created+res.Skipped, res.Failed, time.Since(start))
		}
	}()

	if schoolID == uuid.Nil {
		return nil, domainagg.Validationf(op, "school_id is required")
	}
	if date.IsZero() {
		return nil, domainagg.Validationf(op, "date is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = holidayNote
	}
	if len([]rune(reason)) > attendance.MaxNoteLength {
		return nil, domainagg.Validationf(op, "reason exceeds %d characters", attendance.MaxNoteLength)
	}
	day := attendance.NormalizeDate(date)
	students, err := s.roster.ListActiveStudents(ctx, schoolID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}

	res = &HolidayResult{Date: day, TotalStudents: len(students), Errors: []ItemError{}}
	var created []uuid.UUID
	for i, st := range students {
		if err := ctx.Err(); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, itemError(i, st.ID, domainagg.Wrap(domainagg.CodeRetryable, op, err)))
			continue
		}
		ok, err := s.ledger.InsertIfAbsent(ctx, domainagg.UpsertFactInput{
			StudentID: st.ID,
			Date:      day,
			Status:    attendance.StatusHoliday,
			Note:      reason,
			IsHoliday: true,
			MarkedAt:  s.clock.Now(),
		})
		switch {
		case err != nil:
			res.Failed++
			res.Errors = append(res.Errors, itemError(i, st.ID, err))
			s.log.Warn("holiday mark item failed", "student_id", st.ID, "error", err)
		case ok:
			res.Created++
			created = append(created, st.ID)
		default:
			res.Skipped++
		}
	}

	if len(created) > 0 {
		s.cache.InvalidateForWrite(ctx, cache.WriteImpact{StudentIDs: created, Dates: []time.Time{day}})
	}
	s.events.Publish(ctx, realtime.EventHolidayMarked, schoolID, realtime.BatchData{
		Date:      day.Format(attendance.DateLayout),
		Total:     res.TotalStudents,
		Succeeded: res.Created,
		Failed:    res.Failed,
		IsHoliday: true,
	})
	return res, nil
}

func (s *markingService) DeleteFact(ctx context.Context, factID uuid.UUID) (err error) {
	const op = "marking.delete"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("fact_id", factID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if factID == uuid.Nil {
		return domainagg.Validationf(op, "fact id is required")
	}
	deleted, err := s.ledger.Delete(ctx, factID)
	if err != nil {
		return err
	}
	s.cache.InvalidateForWrite(ctx, impactOf(deleted))
	s.events.Publish(ctx, realtime.EventDeleted, deleted.SchoolID, markedData(deleted))
	return nil
}

// Correct replaces a fact atomically. With preserveID the fact keeps its id when the
// natural key is unchanged; otherwise the old row is deleted and a new one created.
func (s *markingService) Correct(ctx context.Context, factID uuid.UUID, in MarkInput) (fact *types.AttendanceFact, err error) {
	const op = "marking.correct"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("fact_id", factID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if factID == uuid.Nil {
		return nil, domainagg.Validationf(op, "fact id is required")
	}
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, validationError(op, err)
	}
	if _, err := s.resolveStudent(ctx, op, in.StudentID); err != nil {
		return nil, err
	}
	if _, err := s.resolveTeacher(ctx, op, in.TeacherID); err != nil {
		return nil, err
	}
	res, err := s.ledger.Replace(ctx, factID, s.upsertInput(in), s.preserveID)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateForWrite(ctx, impactOf(res.Previous, res.Current))
	s.events.Publish(ctx, realtime.EventCorrected, res.Current.SchoolID, markedData(res.Current))
	return res.Current, nil
}

func (s *markingService) RecordExists(ctx context.Context, studentID uuid.UUID, date time.Time) (bool, error) {
	if studentID == uuid.Nil || date.IsZero() {
		return false, domainagg.Validationf("marking.record_exists", "student_id and date are required")
	}
	return s.ledger.Exists(ctx, studentID, date)
}

func (s *markingService) ListFacts(ctx context.Context, r attendance.DateRange, page, size int) (attendance.Page, error) {
	if err := r.Validate(); err != nil {
		return attendance.Page{}, domainagg.Wrap(domainagg.CodeValidation, "marking.list_facts", err)
	}
	return s.ledger.Page(ctx, attendance.FactFilter{}.Between(r).Paged(page, size))
}
