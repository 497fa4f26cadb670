package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/attendance-backend/internal/http/handlers"
	httpMW "github.com/yungbote/attendance-backend/internal/http/middleware"
	"github.com/yungbote/attendance-backend/internal/observability"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	AttendanceHandler *httpH.AttendanceHandler
	AnalyticsHandler  *httpH.AnalyticsHandler
	HealthHandler     *httpH.HealthHandler
	RosterHandler     *httpH.RosterHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	att := r.Group("/api/v1/attendance")

	// Marking
	if h := cfg.AttendanceHandler; h != nil {
		att.POST("/mark", h.Mark)
		att.POST("/bulk", h.Bulk)
		att.POST("/daily", h.Daily)
		att.POST("/holiday", h.Holiday)
		att.PUT("/:id", h.Correct)
		att.DELETE("/:id", h.Delete)
		att.GET("/exists", h.Exists)
		att.GET("", h.List)
	}

	// Analytics
	if h := cfg.AnalyticsHandler; h != nil {
		att.GET("/students/:id/statistics", h.StudentStatistics)
		att.GET("/students/:id/summary", h.StudentSummary)
		att.GET("/students/:id/trend", h.StudentTrend)
		att.GET("/teachers/:id/summary", h.TeacherSummary)
		att.GET("/schools/:id/daily-summary", h.DailySummary)
		att.GET("/schools/:id/monthly", h.Monthly)
		att.GET("/schools/:id/class-statistics", h.ClassStatistics)
		att.GET("/schools/:id/low-attendance", h.LowAttendance)
		att.POST("/schools/:id/low-attendance/alerts", h.AlertLowAttendance)
		att.GET("/schools/:id/facts", h.FactsByDate)
		att.POST("/schools/:id/warm-cache", h.WarmCache)
		att.GET("/working-days", h.WorkingDays)
	}

	// Roster
	if h := cfg.RosterHandler; h != nil {
		att.GET("/schools/:id/classes", h.Classes)
		att.POST("/schools/:id/roster-refresh", h.Refresh)
	}

	return r
}
