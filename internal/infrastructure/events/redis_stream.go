package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/taxtooter/support-api/internal/core/domain"
)

const (
	DefaultStream       = "taxtooter.queries"
	defaultStreamMaxLen = 10000
)

// RedisStreamPublisher appends events to a Redis stream with XADD. The stream
// is capped approximately at maxLen entries.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: defaultStreamMaxLen}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, event domain.QueryEvent) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}

	_, err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":     string(event.Type),
			"query_id": event.QueryID,
			"payload":  string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// Close is a no-op: the Redis client is shared and closed by its owner.
func (p *RedisStreamPublisher) Close() error { return nil }
