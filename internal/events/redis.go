package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the redis client used for publishing.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// RedisSink appends events to a Redis stream. Publish failures are logged
// and never reach the pipeline.
type RedisSink struct {
	redis  RedisClient
	stream string
	maxLen int64
	logger *slog.Logger
}

func NewRedisSink(client RedisClient, stream string, logger *slog.Logger) *RedisSink {
	return &RedisSink{
		redis:  client,
		stream: stream,
		maxLen: 10000,
		logger: logger.With("component", "redis_sink"),
	}
}

func (s *RedisSink) OnProgress(ctx context.Context, e Event) {
	if err := s.Publish(ctx, e); err != nil {
		s.logger.Error("failed to publish progress event", "error", err, "type", e.Type)
	}
}

func (s *RedisSink) Publish(ctx context.Context, e Event) error {
	dataJSON, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":       string(dataJSON),
			"type":       string(e.Type),
			"event_id":   e.ID,
			"timestamp":  fmt.Sprintf("%d", e.Time.UnixNano()),
			"emitted_at": e.Time.Format(time.RFC3339),
			"source":     "wholesale-finder",
		},
	}

	if _, err := s.redis.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}
