package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/attendance-backend/internal/cache"
	"github.com/yungbote/attendance-backend/internal/data/db"
	"github.com/yungbote/attendance-backend/internal/platform/envutil"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
	"github.com/yungbote/attendance-backend/internal/realtime/bus"
	"github.com/yungbote/attendance-backend/internal/services"
)

type Config struct {
	LogMode     string
	Port        string
	ServiceName string
	Environment string
	Version     string
	CORSOrigins []string
	MetricsAddr string

	DB              db.Config
	LedgerTimeout   time.Duration
	LedgerLockWait  time.Duration
	LedgerSlowWrite time.Duration
	Cache           cache.Config
	CacheSweep      time.Duration
	EventsChannel   string

	NonWorkingDays         []time.Weekday
	RosterConcurrency      int
	PreserveIDOnCorrection bool
	LowAttendanceThreshold float64
}

// LoadEnvFiles reads .env (or ENV_FILE) when present. Missing files are not an error.
func LoadEnvFiles() {
	files := []string{".env"}
	if p := strings.TrimSpace(os.Getenv("ENV_FILE")); p != "" {
		files = []string{p}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func LoadConfig() (Config, error) {
	cacheCfg, err := cache.LoadConfig(envutil.String("CACHE_CONFIG_PATH", ""))
	if err != nil {
		return Config{}, err
	}
	nonWorking, err := services.ParseWeekdays(envutil.List("ATTENDANCE_NON_WORKING_DAYS", []string{"sunday"}))
	if err != nil {
		return Config{}, fmt.Errorf("ATTENDANCE_NON_WORKING_DAYS: %w", err)
	}
	threshold := envutil.Float("LOW_ATTENDANCE_THRESHOLD", services.DefaultLowAttendanceThreshold)
	if threshold <= 0 || threshold > 100 {
		return Config{}, fmt.Errorf("LOW_ATTENDANCE_THRESHOLD must be in (0,100], got %v", threshold)
	}

	cfg := Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "attendance"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", ""),
		CORSOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil),
		MetricsAddr: envutil.String("METRICS_ADDR", ""),

		DB: db.Config{
			Driver: envutil.String("DB_DRIVER", db.DriverPostgres),
			Postgres: db.PostgresConfig{
				Host:            envutil.String("POSTGRES_HOST", "localhost"),
				Port:            envutil.String("POSTGRES_PORT", "5432"),
				User:            envutil.String("POSTGRES_USER", "postgres"),
				Password:        envutil.String("POSTGRES_PASSWORD", ""),
				Name:            envutil.String("POSTGRES_NAME", "attendance"),
				SSLMode:         envutil.String("POSTGRES_SSLMODE", "disable"),
				MaxOpenConns:    envutil.Int("POSTGRES_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    envutil.Int("POSTGRES_MAX_IDLE_CONNS", 10),
				ConnMaxLifetime: envutil.Duration("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
			},
			SQLitePath: envutil.String("SQLITE_PATH", ""),
		},
		LedgerTimeout:   envutil.Duration("LEDGER_TIMEOUT", 5*time.Second),
		LedgerLockWait:  envutil.Duration("LEDGER_LOCK_TIMEOUT", 2*time.Second),
		LedgerSlowWrite: envutil.Duration("LEDGER_SLOW_WRITE", 500*time.Millisecond),
		Cache:           cacheCfg,
		CacheSweep:      envutil.Duration("CACHE_SWEEP_INTERVAL", time.Minute),
		EventsChannel:   envutil.String("ATTENDANCE_EVENTS_CHANNEL", bus.DefaultChannel),

		NonWorkingDays:         nonWorking,
		RosterConcurrency:      envutil.Int("ATTENDANCE_ROSTER_CONCURRENCY", services.DefaultRosterConcurrency),
		PreserveIDOnCorrection: envutil.Bool("ATTENDANCE_CORRECTION_PRESERVE_ID", true),
		LowAttendanceThreshold: threshold,
	}
	if cfg.RosterConcurrency <= 0 {
		cfg.RosterConcurrency = services.DefaultRosterConcurrency
	}
	return cfg, nil
}

func (c Config) logSummary(log *logger.Logger) {
	log.Info("Loaded config",
		"db_driver", c.DB.Driver,
		"port", c.Port,
		"cache_namespace", c.Cache.Namespace,
		"non_working_days", c.NonWorkingDays,
		"roster_concurrency", c.RosterConcurrency,
		"preserve_id", c.PreserveIDOnCorrection,
	)
}

func (c Config) Addr() string {
	port := strings.TrimSpace(c.Port)
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}
