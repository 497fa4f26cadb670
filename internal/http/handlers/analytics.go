package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/http/response"
	"github.com/yungbote/attendance-backend/internal/platform/apierr"
	"github.com/yungbote/attendance-backend/internal/services"
)

// CacheWarmer fills dashboard caches for a school.
type CacheWarmer interface {
	WarmUp(ctx context.Context, schoolID uuid.UUID, today time.Time) error
}

type AnalyticsHandler struct {
	stats  services.StatisticsService
	warmer CacheWarmer
	clock  clockwork.Clock
}

func NewAnalyticsHandler(stats services.StatisticsService, warmer CacheWarmer, clock clockwork.Clock) *AnalyticsHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AnalyticsHandler{stats: stats, warmer: warmer, clock: clock}
}

func (h *AnalyticsHandler) today() time.Time { return attendance.NormalizeDate(h.clock.Now()) }

// monthToDate is the default range for school-wide reports.
func (h *AnalyticsHandler) monthToDate() attendance.DateRange {
	t := h.today()
	return attendance.NewDateRange(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), t)
}

func (h *AnalyticsHandler) rangeOrMonth(c *gin.Context) (attendance.DateRange, error) {
	r, err := rangeQuery(c)
	if err != nil {
		return r, err
	}
	if r.From.IsZero() && r.To.IsZero() {
		return h.monthToDate(), nil
	}
	return r, nil
}

// GET /api/v1/attendance/students/:id/statistics
func (h *AnalyticsHandler) StudentStatistics(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	r, err := rangeQuery(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.stats.StudentStatistics(c.Request.Context(), id, r)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"statistics": out})
}

// GET /api/v1/attendance/students/:id/summary
func (h *AnalyticsHandler) StudentSummary(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	r, err := h.rangeOrMonth(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.stats.StudentSummary(c.Request.Context(), id, r)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"summary": out})
}

// GET /api/v1/attendance/students/:id/trend
func (h *AnalyticsHandler) StudentTrend(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	r, err := h.rangeOrMonth(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.stats.StudentTrend(c.Request.Context(), id, r)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"trend": out})
}

// GET /api/v1/attendance/teachers/:id/summary
func (h *AnalyticsHandler) TeacherSummary(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	r, err := h.rangeOrMonth(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.stats.TeacherSummary(c.Request.Context(), id, r)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"summary": out})
}

// GET /api/v1/attendance/schools/:id/daily-summary?date
func (h *AnalyticsHandler) DailySummary(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	date, err := dateQuery(c, "date", h.today())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	byClass, err := h.stats.DailySummaryByClass(c.Request.Context(), id, date)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	classes := make([]*attendance.ClassDailySummary, 0, len(byClass))
	for _, s := range byClass {
		classes = append(classes, s)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].ClassKey < classes[j].ClassKey })
	response.RespondOK(c, gin.H{"date": date.Format(attendance.DateLayout), "classes": classes})
}

// GET /api/v1/attendance/schools/:id/monthly?year&month
func (h *AnalyticsHandler) Monthly(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	now := h.today()
	year, err := intQuery(c, "year", now.Year())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	month, err := intQuery(c, "month", int(now.Month()))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.stats.MonthlyOverview(c.Request.Context(), id, year, time.Month(month))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"overview": out})
}

// GET /api/v1/attendance/schools/:id/class-statistics?from&to
func (h *AnalyticsHandler) ClassStatistics(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	r, err := h.rangeOrMonth(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.stats.ClassStatistics(c.Request.Context(), id, r)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"classes": out})
}

// GET /api/v1/attendance/schools/:id/low-attendance?from&to&threshold
func (h *AnalyticsHandler) LowAttendance(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	r, err := h.rangeOrMonth(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	threshold, err := floatQuery(c, "threshold", 0)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.stats.LowAttendanceStudents(c.Request.Context(), id, r, threshold)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"students": out})
}

// POST /api/v1/attendance/schools/:id/low-attendance/alerts?from&to&threshold
func (h *AnalyticsHandler) AlertLowAttendance(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	r, err := h.rangeOrMonth(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	threshold, err := floatQuery(c, "threshold", 0)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.stats.AlertLowAttendance(c.Request.Context(), id, r, threshold)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"alerted": len(out), "students": out})
}

// GET /api/v1/attendance/schools/:id/facts?date
func (h *AnalyticsHandler) FactsByDate(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	date, err := dateQuery(c, "date", h.today())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	out, err := h.stats.FactsByDate(c.Request.Context(), id, date)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"date": date.Format(attendance.DateLayout), "facts": out})
}

// POST /api/v1/attendance/schools/:id/warm-cache?date
func (h *AnalyticsHandler) WarmCache(c *gin.Context) {
	if h.warmer == nil {
		response.RespondError(c, http.StatusNotImplemented, "cache_disabled", errMissing("cache"))
		return
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	date, err := dateQuery(c, "date", h.today())
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if err := h.warmer.WarmUp(c.Request.Context(), id, date); err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// GET /api/v1/attendance/working-days?from&to
func (h *AnalyticsHandler) WorkingDays(c *gin.Context) {
	r, err := rangeQuery(c)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	if !r.Closed() {
		response.RespondErr(c, apierr.BadRequest("invalid_range", errMissing("from and to")))
		return
	}
	n, err := h.stats.WorkingDaysBetween(r.From, r.To)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"from": r.From.Format(attendance.DateLayout), "to": r.To.Format(attendance.DateLayout), "working_days": n})
}
