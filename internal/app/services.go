package app

import (
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/yungbote/attendance-backend/internal/cache"
	"github.com/yungbote/attendance-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/attendance-backend/internal/domain/aggregates"
	"github.com/yungbote/attendance-backend/internal/observability"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
	"github.com/yungbote/attendance-backend/internal/services"
)

type Services struct {
	Ledger       domainagg.AttendanceLedger
	Roster       services.RosterProvider
	CachedRoster *services.CachedRoster
	Cache        *cache.Layer
	Events       services.EventPublisher
	Marking      services.MarkingService
	Stats        services.StatisticsService
	CachedSts    *services.CachedStatisticsService
	Calendar     services.Calendar
}

func wireCache(log *logger.Logger, cfg Config, clients Clients, clock clockwork.Clock, metrics *observability.Metrics) *cache.Layer {
	var store cache.Store
	if clients.Redis != nil {
		store = cache.NewRedisStore(clients.Redis)
		log.Info("Cache backed by redis", "namespace", cfg.Cache.Namespace)
	} else {
		store = cache.NewMemoryStore(clock, cfg.CacheSweep)
		log.Info("Cache backed by process memory", "namespace", cfg.Cache.Namespace)
	}
	return cache.NewLayer(store, cfg.Cache, log, metrics)
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")
	clock := clockwork.NewRealClock()
	calendar := services.NewCalendar(cfg.NonWorkingDays...)

	ledger := aggregates.NewAttendanceLedger(aggregates.AttendanceLedgerDeps{
		BaseDeps: aggregates.BaseDeps{
			DB:      db,
			Log:     log,
			Runner:  aggregates.NewLedgerTxRunner(db, cfg.LedgerLockWait),
			Hooks:   aggregates.NewLedgerHooks(metrics, log, cfg.LedgerSlowWrite),
			Timeout: cfg.LedgerTimeout,
		},
		Facts:    reposet.Facts,
		Students: reposet.Students,
		Teachers: reposet.Teachers,
		Clock:    clock,
	})

	layer := wireCache(log, cfg, clients, clock, metrics)
	roster := services.NewCachedRoster(
		services.NewRosterProvider(log, reposet.Schools, reposet.Students, reposet.Teachers),
		layer,
	)
	events := services.NewEventPublisher(log, clients.Bus, clock, metrics)

	marking := services.NewMarkingService(services.MarkingDeps{
		Log:                    log,
		Ledger:                 ledger,
		Roster:                 roster,
		Cache:                  layer,
		Events:                 events,
		Metrics:                metrics,
		Clock:                  clock,
		Calendar:               &calendar,
		RosterConcurrency:      cfg.RosterConcurrency,
		PreserveIDOnCorrection: cfg.PreserveIDOnCorrection,
	})
	stats := services.NewStatisticsService(services.StatisticsDeps{
		Log:                    log,
		Ledger:                 ledger,
		Roster:                 roster,
		Events:                 events,
		Calendar:               &calendar,
		LowAttendanceThreshold: cfg.LowAttendanceThreshold,
	})
	cached := services.NewCachedStatisticsService(log, stats, layer)

	return Services{
		Ledger:       ledger,
		Roster:       roster,
		CachedRoster: roster,
		Cache:        layer,
		Events:       events,
		Marking:      marking,
		Stats:        cached,
		CachedSts:    cached,
		Calendar:     calendar,
	}
}
