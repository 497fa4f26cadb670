package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/attendance-backend/internal/cache"
	types "github.com/yungbote/attendance-backend/internal/domain"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

// CachedStatisticsService is a read-through cache over a StatisticsService.
// Results are identical to the inner service whether served warm or cold.
type CachedStatisticsService struct {
	inner StatisticsService
	layer *cache.Layer
	log   *logger.Logger
}

var _ StatisticsService = (*CachedStatisticsService)(nil)

func NewCachedStatisticsService(log *logger.Logger, inner StatisticsService, layer *cache.Layer) *CachedStatisticsService {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedStatisticsService{
		inner: inner,
		layer: layer,
		log:   log.With("service", "CachedStatisticsService"),
	}
}

func (c *CachedStatisticsService) StudentStatistics(ctx context.Context, studentID uuid.UUID, r attendance.DateRange) (*attendance.Statistics, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.StudentStatisticsKey(studentID, r), func(ctx context.Context) (*attendance.Statistics, error) {
		return c.inner.StudentStatistics(ctx, studentID, r)
	})
}

func (c *CachedStatisticsService) DailySummaryByClass(ctx context.Context, schoolID uuid.UUID, date time.Time) (map[attendance.ClassKey]*attendance.ClassDailySummary, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.DailySummaryKey(schoolID, date), func(ctx context.Context) (map[attendance.ClassKey]*attendance.ClassDailySummary, error) {
		return c.inner.DailySummaryByClass(ctx, schoolID, date)
	})
}

func (c *CachedStatisticsService) WorkingDaysBetween(start, end time.Time) (int, error) {
	return c.inner.WorkingDaysBetween(start, end)
}

func (c *CachedStatisticsService) StudentSummary(ctx context.Context, studentID uuid.UUID, r attendance.DateRange) (*attendance.Summary, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.StudentSummaryKey(studentID, r), func(ctx context.Context) (*attendance.Summary, error) {
		return c.inner.StudentSummary(ctx, studentID, r)
	})
}

func (c *CachedStatisticsService) TeacherSummary(ctx context.Context, teacherID uuid.UUID, r attendance.DateRange) (*attendance.Summary, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.TeacherSummaryKey(teacherID, r), func(ctx context.Context) (*attendance.Summary, error) {
		return c.inner.TeacherSummary(ctx, teacherID, r)
	})
}

func (c *CachedStatisticsService) MonthlyOverview(ctx context.Context, schoolID uuid.UUID, year int, month time.Month) (*attendance.MonthlyOverview, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.MonthlyOverviewKey(schoolID, year, month), func(ctx context.Context) (*attendance.MonthlyOverview, error) {
		return c.inner.MonthlyOverview(ctx, schoolID, year, month)
	})
}

func (c *CachedStatisticsService) ClassStatistics(ctx context.Context, schoolID uuid.UUID, r attendance.DateRange) ([]*attendance.ClassStatistics, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.ClassStatisticsKey(schoolID, r), func(ctx context.Context) ([]*attendance.ClassStatistics, error) {
		return c.inner.ClassStatistics(ctx, schoolID, r)
	})
}

func (c *CachedStatisticsService) StudentTrend(ctx context.Context, studentID uuid.UUID, r attendance.DateRange) ([]attendance.TrendPoint, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.StudentTrendKey(studentID, r), func(ctx context.Context) ([]attendance.TrendPoint, error) {
		return c.inner.StudentTrend(ctx, studentID, r)
	})
}

func (c *CachedStatisticsService) LowAttendanceStudents(ctx context.Context, schoolID uuid.UUID, r attendance.DateRange, threshold float64) ([]*attendance.LowAttendanceStudent, error) {
	return cache.GetOrCompute(ctx, c.layer, cache.LowAttendanceKey(schoolID, r, threshold), func(ctx context.Context) ([]*attendance.LowAttendanceStudent, error) {
		return c.inner.LowAttendanceStudents(ctx, schoolID, r, threshold)
	})
}

// AlertLowAttendance always reads the ledger; alerts must reflect current data.
func (c *CachedStatisticsService) AlertLowAttendance(ctx context.Context, schoolID uuid.UUID, r attendance.DateRange, threshold float64) ([]*attendance.LowAttendanceStudent, error) {
	return c.inner.AlertLowAttendance(ctx, schoolID, r, threshold)
}

func (c *CachedStatisticsService) FactsByDate(ctx context.Context, schoolID uuid.UUID, date time.Time) ([]*types.AttendanceFact, error) {
	if date.IsZero() {
		return c.inner.FactsByDate(ctx, schoolID, date)
	}
	return cache.GetOrCompute(ctx, c.layer, cache.FactsByDateKey(schoolID, date), func(ctx context.Context) ([]*types.AttendanceFact, error) {
		return c.inner.FactsByDate(ctx, schoolID, date)
	})
}

// WarmUp populates today's daily summary, the month overview and month-to-date class statistics.
func (c *CachedStatisticsService) WarmUp(ctx context.Context, schoolID uuid.UUID, today time.Time) error {
	day := attendance.NormalizeDate(today)
	mtd := attendance.NewDateRange(time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC), day)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := c.DailySummaryByClass(gctx, schoolID, day)
		return err
	})
	g.Go(func() error {
		_, err := c.MonthlyOverview(gctx, schoolID, day.Year(), day.Month())
		return err
	})
	g.Go(func() error {
		_, err := c.ClassStatistics(gctx, schoolID, mtd)
		return err
	})
	if err := g.Wait(); err != nil {
		c.log.Warn("cache warm-up failed", "school_id", schoolID, "date", day.Format(attendance.DateLayout), "error", err)
		return err
	}
	c.log.Info("cache warmed", "school_id", schoolID, "date", day.Format(attendance.DateLayout), "took", time.Since(start).String())
	return nil
}
