package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/attendance-backend/internal/data/db"
	"github.com/yungbote/attendance-backend/internal/domain/attendance"
	"github.com/yungbote/attendance-backend/internal/http"
	"github.com/yungbote/attendance-backend/internal/observability"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
	"github.com/yungbote/attendance-backend/internal/realtime"
)

const warmTimeout = 30 * time.Second

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Server   *http.Server
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	LoadEnvFiles()

	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg.logSummary(log)

	theDB, err := db.Open(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		closeDB(theDB)
		log.Sync()
		return nil, err
	}

	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clients, metrics)
	handlerset := wireHandlers(log, theDB, clients.Redis, serviceset)
	router := wireRouter(log, cfg, handlerset, metrics, otelShutdown != nil)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Server:       http.NewServer(router, cfg.Addr()),
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background collectors and the event audit listener.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		a.Metrics.StartDBCollector(ctx, a.Log, a.DB)
		a.Metrics.StartRedisCollector(ctx, a.Log, a.Clients.Redis)
		a.Metrics.StartLedgerCollector(ctx, a.Log, a.DB)
	}

	if a.Clients.Bus != nil {
		eventLog := a.Log.With("component", "EventAudit")
		err := a.Clients.Bus.StartForwarder(ctx, func(ev realtime.Event) {
			if ev.Type == realtime.EventLowAttendance {
				eventLog.Warn("low attendance alert", "school_id", ev.SchoolID, "event_id", ev.ID)
				return
			}
			eventLog.Debug("attendance event", "type", ev.Type, "school_id", ev.SchoolID, "event_id", ev.ID)
		})
		if err != nil {
			a.Log.Warn("event audit listener not started", "error", err)
		}
	}
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "addr", a.Server.Addr())
	return a.Server.Run()
}

func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return nil
	}
	return a.Server.Shutdown(ctx)
}

// WarmSchools pre-populates dashboard caches for each school. Failures are logged and
// returned as a count so one bad school does not stop the rest.
func (a *App) WarmSchools(ctx context.Context, schoolIDs []uuid.UUID, today time.Time) int {
	failed := 0
	for _, id := range schoolIDs {
		wctx, cancel := context.WithTimeout(ctx, warmTimeout)
		err := a.Services.CachedSts.WarmUp(wctx, id, today)
		cancel()
		if err != nil {
			failed++
			a.Log.Warn("cache warm-up failed", "school_id", id, "error", err)
			continue
		}
		a.Log.Info("cache warmed", "school_id", id, "date", today.Format(time.DateOnly))
	}
	return failed
}

// AlertSchools publishes month-to-date low-attendance alerts for each school using the
// configured threshold, returning the failure count.
func (a *App) AlertSchools(ctx context.Context, schoolIDs []uuid.UUID, today time.Time) int {
	day := attendance.NormalizeDate(today)
	mtd := attendance.NewDateRange(time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC), day)
	failed := 0
	for _, id := range schoolIDs {
		actx, cancel := context.WithTimeout(ctx, warmTimeout)
		out, err := a.Services.Stats.AlertLowAttendance(actx, id, mtd, 0)
		cancel()
		if err != nil {
			failed++
			a.Log.Warn("low attendance alerts failed", "school_id", id, "error", err)
			continue
		}
		a.Log.Info("low attendance alerts sent", "school_id", id, "students", len(out))
	}
	return failed
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.Cache != nil {
		_ = a.Services.Cache.Close()
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	closeDB(a.DB)
	if a.Log != nil {
		a.Log.Sync()
	}
}

func closeDB(theDB *gorm.DB) {
	if theDB == nil {
		return
	}
	if sqlDB, err := theDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
