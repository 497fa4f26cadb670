package bus

import (
	"context"

	"github.com/yungbote/attendance-backend/internal/realtime"
)

// Bus publishes attendance events and lets listeners follow them.
type Bus interface {
	Publish(ctx context.Context, ev realtime.Event) error
	StartForwarder(ctx context.Context, onEvent func(ev realtime.Event)) error
	Close() error
}

const DefaultChannel = "attendance-events"
