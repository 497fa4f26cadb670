package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/yungbote/attendance-backend/internal/observability"
	"github.com/yungbote/attendance-backend/internal/platform/logger"
	"github.com/yungbote/attendance-backend/internal/realtime"
	"github.com/yungbote/attendance-backend/internal/realtime/bus"
)

// EventPublisher emits attendance events. Publishing is best effort: failures are logged
// and never fail the write that produced them.
type EventPublisher interface {
	Publish(ctx context.Context, t realtime.EventType, schoolID uuid.UUID, data any)
}

type busPublisher struct {
	log     *logger.Logger
	bus     bus.Bus
	clock   clockwork.Clock
	metrics *observability.Metrics
	timeout time.Duration
}

func NewEventPublisher(log *logger.Logger, b bus.Bus, clock clockwork.Clock, metrics *observability.Metrics) EventPublisher {
	if b == nil {
		return noopPublisher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &busPublisher{
		log:     log.With("service", "EventPublisher"),
		bus:     b,
		clock:   clock,
		metrics: metrics,
		timeout: 2 * time.Second,
	}
}

func (p *busPublisher) Publish(ctx context.Context, t realtime.EventType, schoolID uuid.UUID, data any) {
	ev, err := realtime.NewEvent(t, schoolID, p.clock.Now(), data)
	if err != nil {
		p.metrics.IncEvent(string(t), "encode_error")
		p.log.Warn("attendance event encode failed", "type", t, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.bus.Publish(ctx, ev); err != nil {
		p.metrics.IncEvent(string(t), "error")
		p.log.Warn("attendance event publish failed", "type", t, "event_id", ev.ID, "error", err)
		return
	}
	p.metrics.IncEvent(string(t), "published")
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, realtime.EventType, uuid.UUID, any) {}
