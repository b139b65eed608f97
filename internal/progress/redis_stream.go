package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultStream is the Redis Stream ingestion progress is published to.
const DefaultStream = "findata:ingest:progress"

// RedisStreamSink publishes events to a Redis Stream so UI consumers can
// tail live sessions and replay recent ones.
type RedisStreamSink struct {
	client *redis.Client
	stream string
}

var _ Sink = (*RedisStreamSink)(nil)

func NewRedisStreamSink(client *redis.Client, stream string) *RedisStreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamSink{client: client, stream: stream}
}

func (s *RedisStreamSink) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"session_id": ev.SessionID,
			"stage":      ev.Stage,
			"data":       string(payload),
			"timestamp":  time.Now().Unix(),
		},
	}).Err()
}
