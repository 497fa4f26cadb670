package app

import (
	"context"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	httpH "github.com/yungbote/attendance-backend/internal/http/handlers"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

type Handlers struct {
	Attendance *httpH.AttendanceHandler
	Analytics  *httpH.AnalyticsHandler
	Health     *httpH.HealthHandler
	Roster     *httpH.RosterHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, rdb *goredis.Client, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Attendance: httpH.NewAttendanceHandler(services.Marking),
		Analytics:  httpH.NewAnalyticsHandler(services.Stats, services.CachedSts, clockwork.NewRealClock()),
		Health:     httpH.NewHealthHandler(healthChecks(db, rdb)),
		Roster:     httpH.NewRosterHandler(services.CachedRoster, services.CachedRoster),
	}
}

func healthChecks(db *gorm.DB, rdb *goredis.Client) map[string]httpH.HealthCheck {
	checks := map[string]httpH.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return checks
}
