package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/attendance-backend/internal/http"
	"github.com/yungbote/attendance-backend/internal/observability"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

// wireRouter only installs otelgin when a tracer provider was set up.
func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics, tracing bool) *gin.Engine {
	serviceName := ""
	if tracing {
		serviceName = cfg.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		ServiceName:       serviceName,
		CORSOrigins:       cfg.CORSOrigins,
		AttendanceHandler: handlers.Attendance,
		AnalyticsHandler:  handlers.Analytics,
		HealthHandler:     handlers.Health,
		RosterHandler:     handlers.Roster,
	})
}
