package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/attendance-backend/internal/platform/envutil"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
)

type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Addr:        envutil.String("REDIS_ADDR", ""),
		Password:    envutil.String("REDIS_PASSWORD", ""),
		DB:          envutil.Int("REDIS_DB", 0),
		DialTimeout: envutil.Duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
	}
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

// New dials and pings redis. Callers own the returned client.
func New(ctx context.Context, log *logger.Logger, cfg Config) (*goredis.Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if log != nil {
		log.Info("redis connected", "addr", cfg.Addr, "db", cfg.DB)
	}
	return rdb, nil
}
