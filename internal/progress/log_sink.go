package progress

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes progress events to the service log. Used when no Redis
// is configured.
type LogSink struct {
	log *zap.Logger
}

var _ Sink = (*LogSink)(nil)

func NewLogSink(log *zap.Logger) *LogSink { return &LogSink{log: log} }

func (s *LogSink) Notify(_ context.Context, ev Event) error {
	s.log.Info("ingestion progress",
		zap.String("session_id", ev.SessionID),
		zap.String("stage", ev.Stage),
		zap.Int("processed", ev.Processed),
		zap.Int("total", ev.Total),
		zap.Int("saved", ev.Saved),
		zap.Int("updated", ev.Updated),
		zap.Int("skipped", ev.Skipped),
		zap.Int("failed", ev.Failed))
	return nil
}
