package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/attendance-backend/internal/cache"
	"github.com/yungbote/attendance-backend/internal/realtime/bus"
	"github.com/yungbote/attendance-backend/internal/services"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "DB_DRIVER", "ATTENDANCE_NON_WORKING_DAYS", "ATTENDANCE_ROSTER_CONCURRENCY",
		"ATTENDANCE_CORRECTION_PRESERVE_ID", "LOW_ATTENDANCE_THRESHOLD", "CACHE_CONFIG_PATH",
		"ATTENDANCE_EVENTS_CHANNEL", "CACHE_NAMESPACE", "LEDGER_LOCK_TIMEOUT", "LEDGER_SLOW_WRITE",
	} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr() != ":8080" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.DB.Driver != "postgres" {
		t.Fatalf("driver = %q", cfg.DB.Driver)
	}
	if len(cfg.NonWorkingDays) != 1 || cfg.NonWorkingDays[0] != time.Sunday {
		t.Fatalf("non-working days = %v", cfg.NonWorkingDays)
	}
	if cfg.RosterConcurrency != services.DefaultRosterConcurrency {
		t.Fatalf("concurrency = %d", cfg.RosterConcurrency)
	}
	if !cfg.PreserveIDOnCorrection {
		t.Fatalf("expected id preservation by default")
	}
	if cfg.LowAttendanceThreshold != services.DefaultLowAttendanceThreshold {
		t.Fatalf("threshold = %v", cfg.LowAttendanceThreshold)
	}
	if cfg.EventsChannel != bus.DefaultChannel {
		t.Fatalf("channel = %q", cfg.EventsChannel)
	}
	if cfg.Cache.Namespace != cache.DefaultNamespace {
		t.Fatalf("namespace = %q", cfg.Cache.Namespace)
	}
	if cfg.LedgerLockWait != 2*time.Second || cfg.LedgerSlowWrite != 500*time.Millisecond {
		t.Fatalf("ledger lock wait = %v, slow write = %v", cfg.LedgerLockWait, cfg.LedgerSlowWrite)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9090")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("ATTENDANCE_NON_WORKING_DAYS", "saturday, sunday")
	t.Setenv("ATTENDANCE_ROSTER_CONCURRENCY", "8")
	t.Setenv("ATTENDANCE_CORRECTION_PRESERVE_ID", "false")
	t.Setenv("LOW_ATTENDANCE_THRESHOLD", "60")

	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yaml")
	yamlCfg := "namespace: school-a\nregions:\n  daily-summary:\n    ttl: 1m\n"
	if err := os.WriteFile(path, []byte(yamlCfg), 0o600); err != nil {
		t.Fatalf("write cache config: %v", err)
	}
	t.Setenv("CACHE_CONFIG_PATH", path)
	t.Setenv("CACHE_NAMESPACE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.DB.Driver != "sqlite" {
		t.Fatalf("driver = %q", cfg.DB.Driver)
	}
	if len(cfg.NonWorkingDays) != 2 {
		t.Fatalf("non-working days = %v", cfg.NonWorkingDays)
	}
	if cfg.RosterConcurrency != 8 || cfg.PreserveIDOnCorrection || cfg.LowAttendanceThreshold != 60 {
		t.Fatalf("unexpected attendance settings: %+v", cfg)
	}
	if cfg.Cache.Namespace != "school-a" {
		t.Fatalf("namespace = %q", cfg.Cache.Namespace)
	}
	if got := cfg.Cache.TTL(cache.RegionDailySummary); got != time.Minute {
		t.Fatalf("daily summary ttl = %v", got)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("CACHE_CONFIG_PATH", "")
	t.Run("weekday", func(t *testing.T) {
		t.Setenv("ATTENDANCE_NON_WORKING_DAYS", "funday")
		t.Setenv("LOW_ATTENDANCE_THRESHOLD", "")
		if _, err := LoadConfig(); err == nil {
			t.Fatalf("expected error for unknown weekday")
		}
	})
	t.Run("threshold", func(t *testing.T) {
		t.Setenv("ATTENDANCE_NON_WORKING_DAYS", "")
		t.Setenv("LOW_ATTENDANCE_THRESHOLD", "150")
		if _, err := LoadConfig(); err == nil {
			t.Fatalf("expected error for threshold above 100")
		}
	})
}
