package ports

import (
	"context"

	"github.com/taxtooter/support-api/internal/core/domain"
)

// EventPublisher delivers query events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.QueryEvent) error
	Close() error
}

// EventSink accepts events for asynchronous publication. Enqueue never blocks.
type EventSink interface {
	Enqueue(event domain.QueryEvent)
}
