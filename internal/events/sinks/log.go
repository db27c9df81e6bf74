// Package sinks implements events.Sink consumers for structured logging and
// Prometheus metrics.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-shields/internal/events"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Stringer("event_id", evt.ID),
			zap.Time("ts", evt.TS),
			zap.String("kind", string(evt.Kind)),
			zap.String("scope", string(evt.Scope)),
		}
		if evt.Pattern != "" {
			fields = append(fields, zap.String("pattern", evt.Pattern))
		}
		if evt.Key != "" {
			fields = append(fields, zap.String("key", evt.Key))
		}
		if evt.Value.IsValid() {
			fields = append(fields, zap.Stringer("value", evt.Value))
		}
		if evt.SkipSync {
			fields = append(fields, zap.Bool("skip_sync", true))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("settings changed", fields...)
	}
	return nil
}

// Close implements events.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
