package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/attendance-backend/internal/platform/logger"
	"github.com/yungbote/attendance-backend/internal/platform/redis"
	"github.com/yungbote/attendance-backend/internal/realtime/bus"
)

type Clients struct {
	Redis *goredis.Client
	Bus   bus.Bus
}

// wireClients dials redis when REDIS_ADDR is set. Without it events stay in-process.
func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	rcfg := redis.ConfigFromEnv()
	if !rcfg.Enabled() {
		log.Warn("REDIS_ADDR not set; using in-memory cache and local event bus")
		return Clients{Bus: bus.NewLocalBus(log)}, nil
	}

	rdb, err := redis.New(ctx, log, rcfg)
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	b, err := bus.NewRedisBus(log, rdb, cfg.EventsChannel)
	if err != nil {
		_ = rdb.Close()
		return Clients{}, fmt.Errorf("init redis bus: %w", err)
	}
	return Clients{Redis: rdb, Bus: b}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
