package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/attendance-backend/internal/domain"
	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/observability"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
	"github.com/yungbote/attendance-backend/internal/realtime"
)

const (
	DefaultLowAttendanceThreshold = 75.0
	statsIterateBatch             = 500
)

type StatisticsService interface {
	StudentStatistics(ctx context.Context, studentID uuid.UUID, r attendance.DateRange) (*attendance.Statistics, error)
	DailySummaryByClass(ctx context.Context, schoolID uuid.UUID, date time.Time) (map[attendance.ClassKey]*attendance.ClassDailySummary, error)
	WorkingDaysBetween(start, end time.Time) (int, error)
	StudentSummary(ctx context.Context, studentID uuid.UUID, r attendance.DateRange) (*attendance.Summary, error)
	TeacherSummary(ctx context.Context, teacherID uuid.UUID, r attendance.DateRange) (*attendance.Summary, error)
	MonthlyOverview(ctx context.Context, schoolID uuid.UUID, year int, month time.Month) (*attendance.MonthlyOverview, error)
	ClassStatistics(ctx context.Context, schoolID uuid.UUID, r attendance.DateRange) ([]*attendance.ClassStatistics, error)
	StudentTrend(ctx context.Context, studentID uuid.UUID, r attendance.DateRange) ([]attendance.TrendPoint, error)
	LowAttendanceStudents(ctx context.Context, schoolID uuid.UUID, r attendance.DateRange, threshold float64) ([]*attendance.LowAttendanceStudent, error)
	// AlertLowAttendance recomputes the low-attendance list from the ledger and publishes one
	// alert per student. LowAttendanceStudents itself never publishes.
	AlertLowAttendance(ctx context.Context, schoolID uuid.UUID, r attendance.DateRange, threshold float64) ([]*attendance.LowAttendanceStudent, error)
	FactsByDate(ctx context.Context, schoolID uuid.UUID, date time.Time) ([]*types.AttendanceFact, error)
}

type StatisticsDeps struct {
	Log      *logger.Logger
	Ledger   domainagg.AttendanceLedger
	Roster   RosterProvider
	Events   EventPublisher
	Calendar *Calendar

	// LowAttendanceThreshold applies when a caller passes a non-positive threshold.
	LowAttendanceThreshold float64
}

type statisticsService struct {
	log       *logger.Logger
	ledger    domainagg.AttendanceLedger
	roster    RosterProvider
	events    EventPublisher
	calendar  Calendar
	threshold float64
}

func NewStatisticsService(deps StatisticsDeps) StatisticsService {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Events == nil {
		deps.Events = noopPublisher{}
	}
	cal := DefaultCalendar()
	if deps.Calendar != nil {
		cal = *deps.Calendar
	}
	if deps.LowAttendanceThreshold <= 0 {
		deps.LowAttendanceThreshold = DefaultLowAttendanceThreshold
	}
	return &statisticsService{
		log:       deps.Log.With("service", "StatisticsService"),
		ledger:    deps.Ledger,
		roster:    deps.Roster,
		events:    deps.Events,
		calendar:  cal,
		threshold: deps.LowAttendanceThreshold,
	}
}

func checkRange(op string, r attendance.DateRange) error {
	if err := r.Validate(); err != nil {
		return domainagg.Wrap(domainagg.CodeValidation, op, err)
	}
	return nil
}

// statusTally counts facts by status. Holiday facts land in holidays only.
type statusTally struct {
	total, present, absent, late, halfDay, sick, holidays int
}

func (t *statusTally) add(f *types.AttendanceFact) {
	if !f.CountsTowardTotal() {
		t.holidays++
		return
	}
	t.total++
	switch f.Status {
	case attendance.StatusPresent:
		t.present++
	case attendance.StatusLate:
		t.late++
	case attendance.StatusAbsent:
		t.absent++
	case attendance.StatusHalfDay:
		t.halfDay++
	case attendance.StatusSickLeave:
		t.sick++
	}
}

// presentDays counts PRESENT and LATE.
func (t *statusTally) presentDays() int { return t.present + t.late }

func (s *statisticsService) tallyStudent(ctx context.Context, studentID uuid.UUID, r attendance.DateRange) (statusTally, error) {
	var t statusTally
	facts, err := s.ledger.Query(ctx, attendance.FactFilter{}.ForStudent(studentID).Between(r))
	if err != nil {
		return t, err
	}
	for _, f := range facts {
		t.add(f)
	}
	return t, nil
}

func (s *statisticsService) StudentStatistics(ctx context.Context, studentID uuid.UUID, r attendance.DateRange) (out *attendance.Statistics, err error) {
	const op = "statistics.student"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("student_id", studentID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if err := checkRange(op, r); err != nil {
		return nil, err
	}
	t, err := s.tallyStudent(ctx, studentID, r)
	if err != nil {
		return nil, err
	}
	return &attendance.Statistics{
		TotalDays:            t.total,
		PresentDays:          t.presentDays(),
		AbsentDays:           t.absent,
		HalfDays:             t.halfDay,
		SickLeaveDays:        t.sick,
		AttendancePercentage: attendance.Percentage(t.presentDays(), t.total),
	}, nil
}

func (s *statisticsService) DailySummaryByClass(ctx context.Context, schoolID uuid.UUID, date time.Time) (out map[attendance.ClassKey]*attendance.ClassDailySummary, err error) {
	const op = "statistics.daily_summary"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("school_id", schoolID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if date.IsZero() {
		return nil, domainagg.Validationf(op, "date is required")
	}
	rows, err := s.ledger.CountByClassAndStatus(ctx, schoolID, date)
	if err != nil {
		return nil, err
	}
	out = map[attendance.ClassKey]*attendance.ClassDailySummary{}
	for _, row := range rows {
		key := attendance.NewClassKey(row.Standard, row.Section)
		sum, ok := out[key]
		if !ok {
			sec := ""
			if row.Section != nil {
				sec = *row.Section
			}
			sum = &attendance.ClassDailySummary{ClassKey: key, Standard: row.Standard, Section: sec}
			out[key] = sum
		}
		n := int(row.Count)
		switch row.Status {
		case attendance.StatusPresent:
			sum.PresentCount += n
		case attendance.StatusAbsent:
			sum.AbsentCount += n
		case attendance.StatusLate:
			sum.LateCount += n
		case attendance.StatusHalfDay:
			sum.HalfDayCount += n
		case attendance.StatusSickLeave:
			sum.SickLeaveCount += n
		case attendance.StatusHoliday:
			sum.HolidayCount += n
		}
		sum.TotalStudents += n
	}
	for _, sum := range out {
		sum.AttendancePercentage = attendance.Percentage(sum.PresentCount+sum.LateCount, sum.TotalStudents)
	}
	return out, nil
}

func (s *statisticsService) WorkingDaysBetween(start, end time.Time) (int, error) {
	return s.calendar.WorkingDaysBetween(start, end)
}

func (s *statisticsService) StudentSummary(ctx context.Context, studentID uuid.UUID, r attendance.DateRange) (out *attendance.Summary, err error) {
	const op = "statistics.student_summary"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("student_id", studentID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if err := checkRange(op, r); err != nil {
		return nil, err
	}
	st, err := s.roster.GetStudent(ctx, studentID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	if st == nil {
		return nil, domainagg.NotFoundf(op, "student %s not found", studentID)
	}
	t, err := s.tallyStudent(ctx, studentID, r)
	if err != nil {
		return nil, err
	}
	return &attendance.Summary{
		SubjectID:            st.ID,
		SubjectType:          "student",
		Name:                 st.FullName(),
		ClassKey:             st.ClassKey(),
		From:                 r.From,
		To:                   r.To,
		TotalDays:            t.total,
		PresentDays:          t.presentDays(),
		AbsentDays:           t.absent,
		HalfDays:             t.halfDay,
		SickLeaveDays:        t.sick,
		HolidayDays:          t.holidays,
		AttendancePercentage: attendance.Percentage(t.presentDays(), t.total),
	}, nil
}

// TeacherSummary treats a working day as attended when the teacher marked any fact on it.
func (s *statisticsService) TeacherSummary(ctx context.Context, teacherID uuid.UUID, r attendance.DateRange) (out *attendance.Summary, err error) {
	const op = "statistics.teacher_summary"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("teacher_id", teacherID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if !r.Closed() {
		return nil, domainagg.Validationf(op, "from and to are required")
	}
	working, err := s.calendar.WorkingDaysBetween(r.From, r.To)
	if err != nil {
		return nil, err
	}
	t, err := s.roster.GetTeacher(ctx, teacherID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	if t == nil {
		return nil, domainagg.NotFoundf(op, "teacher %s not found", teacherID)
	}

	days := map[time.Time]struct{}{}
	err = s.ledger.Iterate(ctx, attendance.FactFilter{}.ForTeacher(teacherID).Between(r), statsIterateBatch, func(batch []*types.AttendanceFact) error {
		for _, f := range batch {
			if d := f.Day(); s.calendar.IsWorkingDay(d) {
				days[d] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	present := len(days)
	absent := working - present
	if absent < 0 {
		absent = 0
	}
	return &attendance.Summary{
		SubjectID:            t.ID,
		SubjectType:          "teacher",
		Name:                 t.FullName(),
		From:                 r.From,
		To:                   r.To,
		TotalDays:            working,
		PresentDays:          present,
		AbsentDays:           absent,
		AttendancePercentage: attendance.Percentage(present, working),
	}, nil
}

func (s *statisticsService) MonthlyOverview(ctx context.Context, schoolID uuid.UUID, year int, month time.Month) (out *attendance.MonthlyOverview, err error) {
	const op = "statistics.monthly_overview"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("school_id", schoolID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if month < time.January || month > time.December {
		return nil, domainagg.Validationf(op, "month %d out of range", month)
	}
	if year < 1 {
		return nil, domainagg.Validationf(op, "year %d out of range", year)
	}
	var t statusTally
	f := attendance.FactFilter{}.ForSchool(schoolID).Between(attendance.MonthRange(year, month))
	err = s.ledger.Iterate(ctx, f, statsIterateBatch, func(batch []*types.AttendanceFact) error {
		for _, fact := range batch {
			t.add(fact)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &attendance.MonthlyOverview{
		SchoolID:          schoolID,
		Year:              year,
		Month:             int(month),
		TotalRecords:      t.total,
		PresentCount:      t.present,
		AbsentCount:       t.absent,
		LateCount:         t.late,
		HalfDayCount:      t.halfDay,
		SickLeaveCount:    t.sick,
		PresentPercentage: attendance.Percentage(t.present, t.total),
		AbsentPercentage:  attendance.Percentage(t.absent, t.total),
		LatePercentage:    attendance.Percentage(t.late, t.total),
	}, nil
}

// studentIndex resolves fact owners, starting from the active roster and
// falling back to single lookups for students no longer active.
type studentIndex struct {
	roster RosterProvider
	byID   map[uuid.UUID]*types.Student
}

func (s *statisticsService) newStudentIndex(ctx context.Context, schoolID uuid.UUID) (*studentIndex, error) {
	students, err := s.roster.ListActiveStudents(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	idx := &studentIndex{roster: s.roster, byID: make(map[uuid.UUID]*types.Student, len(students))}
	for _, st := range students {
		idx.byID[st.ID] = st
	}
	return idx, nil
}

func (idx *studentIndex) get(ctx context.Context, id uuid.UUID) (*types.Student, error) {
	if st, ok := idx.byID[id]; ok {
		return st, nil
	}
	st, err := idx.roster.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	idx.byID[id] = st
	return st, nil
}

func (s *statisticsService) ClassStatistics(ctx context.Context, schoolID uuid.UUID, r attendance.DateRange) (out []*attendance.ClassStatistics, err error) {
	const op = "statistics.class_statistics"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("school_id", schoolID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if err := checkRange(op, r); err != nil {
		return nil, err
	}
	idx, err := s.newStudentIndex(ctx, schoolID)
	if err != nil {
		return nil, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}

	byClass := map[attendance.ClassKey]*attendance.ClassStatistics{}
	err = s.ledger.Iterate(ctx, attendance.FactFilter{}.ForSchool(schoolID).Between(r), statsIterateBatch, func(batch []*types.AttendanceFact) error {
		for _, f := range batch {
			if !f.CountsTowardTotal() {
				continue
			}
			st, err := idx.get(ctx, f.StudentID)
			if err != nil {
				return err
			}
			if st == nil {
				continue
			}
			key := st.ClassKey()
			cs, ok := byClass[key]
			if !ok {
				std, sec := key.Split()
				cs = &attendance.ClassStatistics{ClassKey: key, Standard: std, Section: sec}
				byClass[key] = cs
			}
			cs.TotalRecords++
			switch f.Status {
			case attendance.StatusPresent, attendance.StatusLate, attendance.StatusHalfDay:
				cs.PresentCount++
			case attendance.StatusAbsent, attendance.StatusSickLeave:
				cs.AbsentCount++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out = make([]*attendance.ClassStatistics, 0, len(byClass))
	for _, cs := range byClass {
		cs.AttendancePercentage = attendance.Percentage(cs.PresentCount, cs.TotalRecords)
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassKey < out[j].ClassKey })
	return out, nil
}

func (s *statisticsService) StudentTrend(ctx context.Context, studentID uuid.UUID, r attendance.DateRange) (out []attendance.TrendPoint, err error) {
	const op = "statistics.student_trend"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("student_id", studentID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if err := checkRange(op, r); err != nil {
		return nil, err
	}
	facts, err := s.ledger.Query(ctx, attendance.FactFilter{}.ForStudent(studentID).Between(r).Ascending())
	if err != nil {
		return nil, err
	}
	out = make([]attendance.TrendPoint, 0, len(facts))
	for _, f := range facts {
		out = append(out, attendance.TrendPoint{Date: f.Day(), Status: f.Status})
	}
	return out, nil
}

// LowAttendanceStudents lists students whose attendance over r is below threshold,
// lowest first, and publishes one alert per student.
func (s *statisticsService) LowAttendanceStudents(ctx context.Context, schoolID uuid.UUID, r attendance.DateRange, threshold float64) (out []*attendance.LowAttendanceStudent, err error) {
	const op = "statistics.low_attendance"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("school_id", schoolID.String()))
	defer func() { observability.EndSpan(span, err) }()

	out, _, err = s.lowAttendance(ctx, op, schoolID, r, threshold)
	return out, err
}

func (s *statisticsService) AlertLowAttendance(ctx context.Context, schoolID uuid.UUID, r attendance.DateRange, threshold float64) (out []*attendance.LowAttendanceStudent, err error) {
	const op = "statistics.alert_low_attendance"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("school_id", schoolID.String()))
	defer func() { observability.EndSpan(span, err) }()

	out, threshold, err = s.lowAttendance(ctx, op, schoolID, r, threshold)
	if err != nil {
		return nil, err
	}
	for _, row := range out {
		s.events.Publish(ctx, realtime.EventLowAttendance, schoolID, realtime.LowAttendanceData{
			StudentID:            row.StudentID,
			StudentName:          row.Name,
			ClassKey:             string(row.ClassKey),
			AttendancePercentage: row.AttendancePercentage,
			Threshold:            threshold,
			From:                 formatDay(r.From),
			To:                   formatDay(r.To),
		})
	}
	s.log.Info("low attendance alerts published", "school_id", schoolID, "students", len(out), "threshold", threshold)
	return out, nil
}

// lowAttendance lists students below threshold, lowest first. It also returns the threshold
// actually applied.
func (s *statisticsService) lowAttendance(ctx context.Context, op string, schoolID uuid.UUID, r attendance.DateRange, threshold float64) ([]*attendance.LowAttendanceStudent, float64, error) {
	if err := checkRange(op, r); err != nil {
		return nil, 0, err
	}
	if threshold <= 0 {
		threshold = s.threshold
	}
	if threshold > 100 {
		return nil, 0, domainagg.Validationf(op, "threshold %.2f exceeds 100", threshold)
	}

	tallies := map[uuid.UUID]*statusTally{}
	err := s.ledger.Iterate(ctx, attendance.FactFilter{}.ForSchool(schoolID).Between(r), statsIterateBatch, func(batch []*types.AttendanceFact) error {
		for _, f := range batch {
			t, ok := tallies[f.StudentID]
			if !ok {
				t = &statusTally{}
				tallies[f.StudentID] = t
			}
			t.add(f)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	idx, err := s.newStudentIndex(ctx, schoolID)
	if err != nil {
		return nil, 0, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	out := []*attendance.LowAttendanceStudent{}
	for id, t := range tallies {
		if t.total == 0 {
			continue
		}
		pct := attendance.Percentage(t.presentDays(), t.total)
		if pct >= threshold {
			continue
		}
		row := &attendance.LowAttendanceStudent{
			StudentID:            id,
			TotalDays:            t.total,
			PresentDays:          t.presentDays(),
			AttendancePercentage: pct,
		}
		st, err := idx.get(ctx, id)
		if err != nil {
			return nil, 0, domainagg.Wrap(domainagg.CodeRetryable, op, err)
		}
		if st != nil {
			row.Name = st.FullName()
			row.ClassKey = st.ClassKey()
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AttendancePercentage != out[j].AttendancePercentage {
			return out[i].AttendancePercentage < out[j].AttendancePercentage
		}
		return out[i].StudentID.String() < out[j].StudentID.String()
	})
	return out, threshold, nil
}

// FactsByDate returns every fact the school recorded on date, holidays included.
func (s *statisticsService) FactsByDate(ctx context.Context, schoolID uuid.UUID, date time.Time) (out []*types.AttendanceFact, err error) {
	const op = "statistics.facts_by_date"
	ctx, span := observability.StartSpan(ctx, op, attribute.String("school_id", schoolID.String()))
	defer func() { observability.EndSpan(span, err) }()

	if date.IsZero() {
		return nil, domainagg.Validationf(op, "date is required")
	}
	out, err = s.ledger.Query(ctx, attendance.FactFilter{}.ForSchool(schoolID).On(date))
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*types.AttendanceFact{}
	}
	return out, nil
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(attendance.DateLayout)
}
