package services

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/attendance-backend/internal/domain"
	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/realtime"
)

type statsSchool struct {
	*markingFixture
	raw     StatisticsService
	a, b, c *types.Student
	d       *types.Student
	teacher *types.Teacher
}

// newStatsSchool seeds two classes: 5-A with students a, b, c and 6 (no section) with d.
func newStatsSchool(t *testing.T) *statsSchool {
	t.Helper()
	s := &statsSchool{}
	s.markingFixture = newMarkingFixture(t, true, func(r *fakeRoster) {
		s.a = r.addStudent("Asha", "5", strPtr("A"), true)
		s.b = r.addStudent("Bilal", "5", strPtr("A"), true)
		s.c = r.addStudent("Chen", "5", strPtr("A"), true)
		s.d = r.addStudent("Dev", "6", nil, true)
		s.teacher = r.addTeacher("Tara", true)
	})
	s.raw = NewStatisticsService(StatisticsDeps{Ledger: s.ledger, Roster: s.roster, Events: &recordingPublisher{}})
	return s
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDailySummaryByClass(t *testing.T) {
	s := newStatsSchool(t)
	mon := day(2024, 3, 4)
	s.ledger.seed(s.a, mon, attendance.StatusPresent, nil)
	s.ledger.seed(s.b, mon, attendance.StatusLate, nil)
	s.ledger.seed(s.c, mon, attendance.StatusAbsent, nil)
	s.ledger.seed(s.d, mon, attendance.StatusSickLeave, nil)
	s.ledger.seed(s.a, day(2024, 3, 5), attendance.StatusAbsent, nil)

	got, err := s.raw.DailySummaryByClass(context.Background(), s.roster.school.ID, mon)
	if err != nil {
		t.Fatalf("DailySummaryByClass: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("classes = %d", len(got))
	}
	fiveA := got["5-A"]
	if fiveA == nil || fiveA.TotalStudents != 3 || fiveA.PresentCount != 1 || fiveA.LateCount != 1 || fiveA.AbsentCount != 1 {
		t.Fatalf("5-A: %+v", fiveA)
	}
	if !approx(fiveA.AttendancePercentage, 200.0/3.0) {
		t.Fatalf("5-A percentage = %v", fiveA.AttendancePercentage)
	}
	six := got["6-"]
	if six == nil || six.Section != "" || six.SickLeaveCount != 1 || six.AttendancePercentage != 0 {
		t.Fatalf("6: %+v", six)
	}
}

func TestDailySummaryCountsHolidaysInTotal(t *testing.T) {
	s := newStatsSchool(t)
	mon := day(2024, 3, 4)
	s.ledger.seed(s.a, mon, attendance.StatusPresent, nil)
	s.ledger.seed(s.b, mon, attendance.StatusHoliday, nil)

	got, err := s.raw.DailySummaryByClass(context.Background(), s.roster.school.ID, mon)
	if err != nil {
		t.Fatalf("DailySummaryByClass: %v", err)
	}
	sum := got["5-A"]
	if sum.TotalStudents != 2 || sum.HolidayCount != 1 || !approx(sum.AttendancePercentage, 50) {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestStudentStatisticsZeroTotal(t *testing.T) {
	s := newStatsSchool(t)
	r := attendance.NewDateRange(day(2024, 3, 1), day(2024, 3, 31))

	empty, err := s.raw.StudentStatistics(context.Background(), s.a.ID, r)
	if err != nil || empty.TotalDays != 0 || empty.AttendancePercentage != 0 {
		t.Fatalf("empty: %+v err=%v", empty, err)
	}

	s.ledger.seed(s.a, day(2024, 3, 8), attendance.StatusHoliday, nil)
	onlyHoliday, err := s.raw.StudentStatistics(context.Background(), s.a.ID, r)
	if err != nil || onlyHoliday.TotalDays != 0 || onlyHoliday.AttendancePercentage != 0 {
		t.Fatalf("holiday only: %+v err=%v", onlyHoliday, err)
	}
}

func TestStudentStatisticsRejectsInvertedRange(t *testing.T) {
	s := newStatsSchool(t)
	_, err := s.raw.StudentStatistics(context.Background(), s.a.ID, attendance.NewDateRange(day(2024, 3, 9), day(2024, 3, 1)))
	if !domainagg.IsValidation(err) {
		t.Fatalf("expected validation, got %v", err)
	}
}

func TestStudentSummaryCountsHolidaysSeparately(t *testing.T) {
	s := newStatsSchool(t)
	s.ledger.seed(s.a, day(2024, 3, 4), attendance.StatusPresent, nil)
	s.ledger.seed(s.a, day(2024, 3, 5), attendance.StatusLate, nil)
	s.ledger.seed(s.a, day(2024, 3, 6), attendance.StatusAbsent, nil)
	s.ledger.seed(s.a, day(2024, 3, 7), attendance.StatusHalfDay, nil)
	s.ledger.seed(s.a, day(2024, 3, 8), attendance.StatusHoliday, nil)

	sum, err := s.raw.StudentSummary(context.Background(), s.a.ID, attendance.NewDateRange(day(2024, 3, 1), day(2024, 3, 31)))
	if err != nil {
		t.Fatalf("StudentSummary: %v", err)
	}
	if sum.TotalDays != 4 || sum.PresentDays != 2 || sum.AbsentDays != 1 || sum.HalfDays != 1 || sum.HolidayDays != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	if sum.ClassKey != "5-A" || sum.Name != "Asha" || !approx(sum.AttendancePercentage, 50) {
		t.Fatalf("summary identity: %+v", sum)
	}

	if _, err := s.raw.StudentSummary(context.Background(), uuid.New(), attendance.DateRange{}); !domainagg.IsNotFound(err) {
		t.Fatalf("unknown student: %v", err)
	}
}

func TestTeacherSummaryUsesWorkingDays(t *testing.T) {
	s := newStatsSchool(t)
	tid := s.teacher.ID
	s.ledger.seed(s.a, day(2024, 3, 4), attendance.StatusPresent, &tid)
	s.ledger.seed(s.a, day(2024, 3, 5), attendance.StatusPresent, &tid)
	s.ledger.seed(s.b, day(2024, 3, 5), attendance.StatusAbsent, &tid)
	s.ledger.seed(s.a, day(2024, 3, 10), attendance.StatusPresent, &tid)

	sum, err := s.raw.TeacherSummary(context.Background(), tid, attendance.NewDateRange(day(2024, 3, 4), day(2024, 3, 10)))
	if err != nil {
		t.Fatalf("TeacherSummary: %v", err)
	}
	if sum.TotalDays != 6 || sum.PresentDays != 2 || sum.AbsentDays != 4 {
		t.Fatalf("summary: %+v", sum)
	}
	if !approx(sum.AttendancePercentage, 100.0/3.0) {
		t.Fatalf("percentage = %v", sum.AttendancePercentage)
	}
	if _, err := s.raw.TeacherSummary(context.Background(), tid, attendance.NewDateRange(day(2024, 3, 4), time.Time{})); !domainagg.IsValidation(err) {
		t.Fatalf("open range must be rejected: %v", err)
	}
}

func TestMonthlyOverviewExcludesHolidays(t *testing.T) {
	s := newStatsSchool(t)
	s.ledger.seed(s.a, day(2024, 3, 4), attendance.StatusPresent, nil)
	s.ledger.seed(s.b, day(2024, 3, 4), attendance.StatusAbsent, nil)
	s.ledger.seed(s.c, day(2024, 3, 4), attendance.StatusLate, nil)
	s.ledger.seed(s.d, day(2024, 3, 4), attendance.StatusPresent, nil)
	s.ledger.seed(s.a, day(2024, 3, 8), attendance.StatusHoliday, nil)
	s.ledger.seed(s.a, day(2024, 4, 1), attendance.StatusAbsent, nil)

	got, err := s.raw.MonthlyOverview(context.Background(), s.roster.school.ID, 2024, time.March)
	if err != nil {
		t.Fatalf("MonthlyOverview: %v", err)
	}
	if got.TotalRecords != 4 || got.PresentCount != 2 || got.AbsentCount != 1 || got.LateCount != 1 {
		t.Fatalf("overview: %+v", got)
	}
	if !approx(got.PresentPercentage, 50) || !approx(got.AbsentPercentage, 25) || !approx(got.LatePercentage, 25) {
		t.Fatalf("percentages: %+v", got)
	}
	if _, err := s.raw.MonthlyOverview(context.Background(), s.roster.school.ID, 2024, 13); !domainagg.IsValidation(err) {
		t.Fatalf("month 13: %v", err)
	}
}

func TestClassStatisticsFoldsHalfDayAndSickLeave(t *testing.T) {
	s := newStatsSchool(t)
	s.ledger.seed(s.a, day(2024, 3, 4), attendance.StatusHalfDay, nil)
	s.ledger.seed(s.b, day(2024, 3, 4), attendance.StatusSickLeave, nil)
	s.ledger.seed(s.c, day(2024, 3, 4), attendance.StatusPresent, nil)
	s.ledger.seed(s.c, day(2024, 3, 8), attendance.StatusHoliday, nil)
	s.ledger.seed(s.d, day(2024, 3, 4), attendance.StatusAbsent, nil)

	got, err := s.raw.ClassStatistics(context.Background(), s.roster.school.ID, attendance.NewDateRange(day(2024, 3, 1), day(2024, 3, 31)))
	if err != nil {
		t.Fatalf("ClassStatistics: %v", err)
	}
	if len(got) != 2 || got[0].ClassKey != "5-A" || got[1].ClassKey != "6-" {
		t.Fatalf("classes: %+v", got)
	}
	if got[0].TotalRecords != 3 || got[0].PresentCount != 2 || got[0].AbsentCount != 1 {
		t.Fatalf("5-A: %+v", got[0])
	}
	if got[1].AttendancePercentage != 0 {
		t.Fatalf("6: %+v", got[1])
	}
}

func TestStudentTrendAscending(t *testing.T) {
	s := newStatsSchool(t)
	s.ledger.seed(s.a, day(2024, 3, 6), attendance.StatusAbsent, nil)
	s.ledger.seed(s.a, day(2024, 3, 4), attendance.StatusPresent, nil)
	s.ledger.seed(s.a, day(2024, 3, 5), attendance.StatusLate, nil)

	got, err := s.raw.StudentTrend(context.Background(), s.a.ID, attendance.DateRange{})
	if err != nil {
		t.Fatalf("StudentTrend: %v", err)
	}
	want := []attendance.Status{attendance.StatusPresent, attendance.StatusLate, attendance.StatusAbsent}
	if len(got) != len(want) {
		t.Fatalf("points = %d", len(got))
	}
	for i, p := range got {
		if p.Status != want[i] || !p.Date.Equal(day(2024, 3, 4+i)) {
			t.Fatalf("point %d: %+v", i, p)
		}
	}
}

func TestLowAttendanceAlertsAreExplicit(t *testing.T) {
	s := newStatsSchool(t)
	for i, st := range []attendance.Status{attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusAbsent, attendance.StatusAbsent} {
		s.ledger.seed(s.a, day(2024, 3, 4+i), st, nil)
	}
	for i, st := range []attendance.Status{attendance.StatusPresent, attendance.StatusLate, attendance.StatusPresent, attendance.StatusAbsent} {
		s.ledger.seed(s.b, day(2024, 3, 4+i), st, nil)
	}
	events := &recordingPublisher{}
	svc := NewStatisticsService(StatisticsDeps{Ledger: s.ledger, Roster: s.roster, Events: events})
	ctx := context.Background()
	school := s.roster.school.ID
	march := attendance.NewDateRange(day(2024, 3, 1), day(2024, 3, 31))

	got, err := svc.LowAttendanceStudents(ctx, school, march, 0)
	if err != nil {
		t.Fatalf("LowAttendanceStudents: %v", err)
	}
	if len(got) != 1 || got[0].StudentID != s.a.ID || !approx(got[0].AttendancePercentage, 25) || got[0].ClassKey != "5-A" {
		t.Fatalf("low attendance: %+v", got)
	}
	if n := len(events.ofType(realtime.EventLowAttendance)); n != 0 {
		t.Fatalf("reads must not publish, got %d alerts", n)
	}

	alerted, err := svc.AlertLowAttendance(ctx, school, march, 0)
	if err != nil || !reflect.DeepEqual(alerted, got) {
		t.Fatalf("AlertLowAttendance = %+v, %v", alerted, err)
	}
	alerts := events.ofType(realtime.EventLowAttendance)
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d", len(alerts))
	}
	data := alerts[0].Data.(realtime.LowAttendanceData)
	if data.Threshold != DefaultLowAttendanceThreshold || data.StudentName != "Asha" || data.From != "2024-03-01" {
		t.Fatalf("alert data: %+v", data)
	}

	if _, err := svc.LowAttendanceStudents(ctx, school, attendance.DateRange{}, 120); !domainagg.IsValidation(err) {
		t.Fatalf("threshold over 100: %v", err)
	}
	if _, err := svc.AlertLowAttendance(ctx, school, attendance.DateRange{}, 120); !domainagg.IsValidation(err) {
		t.Fatalf("alert threshold over 100: %v", err)
	}
}

func TestCachedAlertLowAttendanceAlwaysPublishes(t *testing.T) {
	s := newStatsSchool(t)
	s.ledger.seed(s.a, day(2024, 3, 4), attendance.StatusAbsent, nil)
	ctx := context.Background()
	school := s.roster.school.ID
	march := attendance.NewDateRange(day(2024, 3, 1), day(2024, 3, 31))

	if _, err := s.stats.LowAttendanceStudents(ctx, school, march, 0); err != nil {
		t.Fatalf("warm the cache: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := s.stats.AlertLowAttendance(ctx, school, march, 0); err != nil {
			t.Fatalf("AlertLowAttendance #%d: %v", i, err)
		}
	}
	if n := len(s.events.ofType(realtime.EventLowAttendance)); n != 2 {
		t.Fatalf("alerts = %d, want one per call", n)
	}
}

func TestFactsByDate(t *testing.T) {
	s := newStatsSchool(t)
	onDay := s.ledger.seed(s.a, day(2024, 3, 4), attendance.StatusPresent, nil)
	holiday := s.ledger.seed(s.d, day(2024, 3, 4), attendance.StatusHoliday, nil)
	s.ledger.seed(s.b, day(2024, 3, 5), attendance.StatusAbsent, nil)
	ctx := context.Background()
	school := s.roster.school.ID

	for name, svc := range map[string]StatisticsService{"ledger": s.raw, "cached": s.stats} {
		got, err := svc.FactsByDate(ctx, school, day(2024, 3, 4).Add(8*time.Hour))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		ids := map[uuid.UUID]bool{}
		for _, f := range got {
			ids[f.ID] = true
		}
		if len(got) != 2 || !ids[onDay.ID] || !ids[holiday.ID] {
			t.Fatalf("%s: facts = %+v", name, got)
		}
	}
	got, err := s.stats.FactsByDate(ctx, uuid.New(), day(2024, 3, 4))
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("unknown school: %v, %v", got, err)
	}
	if _, err := s.raw.FactsByDate(ctx, school, time.Time{}); !domainagg.IsValidation(err) {
		t.Fatalf("zero date: %v", err)
	}
}

func TestCachedStatisticsMatchLedger(t *testing.T) {
	s := newStatsSchool(t)
	tid := s.teacher.ID
	s.ledger.seed(s.a, day(2024, 3, 4), attendance.StatusPresent, &tid)
	s.ledger.seed(s.b, day(2024, 3, 4), attendance.StatusAbsent, &tid)
	s.ledger.seed(s.c, day(2024, 3, 5), attendance.StatusHalfDay, nil)
	s.ledger.seed(s.d, day(2024, 3, 5), attendance.StatusHoliday, nil)

	ctx := context.Background()
	school := s.roster.school.ID
	month := attendance.NewDateRange(day(2024, 3, 1), day(2024, 3, 31))

	type call func(StatisticsService) (any, error)
	calls := map[string]call{
		"student statistics": func(svc StatisticsService) (any, error) { return svc.StudentStatistics(ctx, s.a.ID, month) },
		"daily summary":      func(svc StatisticsService) (any, error) { return svc.DailySummaryByClass(ctx, school, day(2024, 3, 4)) },
		"student summary":    func(svc StatisticsService) (any, error) { return svc.StudentSummary(ctx, s.b.ID, month) },
		"teacher summary":    func(svc StatisticsService) (any, error) { return svc.TeacherSummary(ctx, tid, month) },
		"monthly overview":   func(svc StatisticsService) (any, error) { return svc.MonthlyOverview(ctx, school, 2024, time.March) },
		"class statistics":   func(svc StatisticsService) (any, error) { return svc.ClassStatistics(ctx, school, month) },
		"student trend":      func(svc StatisticsService) (any, error) { return svc.StudentTrend(ctx, s.c.ID, month) },
		"low attendance":     func(svc StatisticsService) (any, error) { return svc.LowAttendanceStudents(ctx, school, month, 90) },
	}
	for name, fn := range calls {
		t.Run(name, func(t *testing.T) {
			want, err := fn(s.raw)
			if err != nil {
				t.Fatalf("ledger: %v", err)
			}
			cold, err := fn(s.stats)
			if err != nil {
				t.Fatalf("cold: %v", err)
			}
			reads := s.ledger.readCount()
			warm, err := fn(s.stats)
			if err != nil {
				t.Fatalf("warm: %v", err)
			}
			if s.ledger.readCount() != reads {
				t.Fatalf("warm read reached the ledger")
			}
			if !reflect.DeepEqual(want, cold) || !reflect.DeepEqual(want, warm) {
				t.Fatalf("cache result differs:\nwant %#v\ncold %#v\nwarm %#v", want, cold, warm)
			}
		})
	}
}

func TestWarmUpPopulatesDashboards(t *testing.T) {
	s := newStatsSchool(t)
	s.ledger.seed(s.a, day(2024, 3, 4), attendance.StatusPresent, nil)
	cached := s.stats.(*CachedStatisticsService)
	ctx := context.Background()

	if err := cached.WarmUp(ctx, s.roster.school.ID, day(2024, 3, 4)); err != nil {
		t.Fatalf("WarmUp: %v", err)
	}
	reads := s.ledger.readCount()
	if _, err := cached.DailySummaryByClass(ctx, s.roster.school.ID, day(2024, 3, 4)); err != nil {
		t.Fatalf("daily: %v", err)
	}
	if _, err := cached.MonthlyOverview(ctx, s.roster.school.ID, 2024, time.March); err != nil {
		t.Fatalf("monthly: %v", err)
	}
	if _, err := cached.ClassStatistics(ctx, s.roster.school.ID, attendance.NewDateRange(day(2024, 3, 1), day(2024, 3, 4))); err != nil {
		t.Fatalf("class: %v", err)
	}
	if s.ledger.readCount() != reads {
		t.Fatalf("warmed reads reached the ledger")
	}
}
