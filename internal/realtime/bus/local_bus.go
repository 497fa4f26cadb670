package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/attendance-backend/internal/platform/logger"
	"github.com/yungbote/attendance-backend/internal/realtime"
)

// LocalBus fans events out in-process and logs each one. It is the bus when redis is absent.
type LocalBus struct {
	log *logger.Logger

	mu        sync.RWMutex
	listeners map[int]func(realtime.Event)
	nextID    int
	closed    bool
}

func NewLocalBus(log *logger.Logger) *LocalBus {
	if log == nil {
		log = logger.Nop()
	}
	return &LocalBus{log: log.With("service", "LocalEventBus"), listeners: map[int]func(realtime.Event){}}
}

func (b *LocalBus) Publish(ctx context.Context, ev realtime.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("event bus closed")
	}
	b.log.Info("attendance event", "type", ev.Type, "event_id", ev.ID, "school_id", ev.SchoolID)
	for _, fn := range b.listeners {
		fn(ev)
	}
	return nil
}

// StartForwarder registers onEvent until ctx is done. Delivery is synchronous with Publish.
func (b *LocalBus) StartForwarder(ctx context.Context, onEvent func(ev realtime.Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus closed")
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = onEvent
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.listeners = map[int]func(realtime.Event){}
	return nil
}
