// Package events publishes query lifecycle events to a message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/taxtooter/support-api/internal/core/domain"
)

func encode(event domain.QueryEvent) ([]byte, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

// NopPublisher discards events. It is used when no broker is configured.
type NopPublisher struct {
	log zerolog.Logger
}

func NewNopPublisher(log zerolog.Logger) *NopPublisher {
	return &NopPublisher{log: log}
}

func (p *NopPublisher) Publish(_ context.Context, event domain.QueryEvent) error {
	p.log.Debug().Str("type", string(event.Type)).Str("query_id", event.QueryID).Msg("event discarded")
	return nil
}

func (p *NopPublisher) Close() error { return nil }
