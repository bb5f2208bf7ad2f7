// Package sinks provides event sink implementations for the hub.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/odanko/outagebot/internal/events"
)

// LogSink writes structured logs for every monitoring event. Useful during
// development and as a flight recorder in production.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.logger.Info("monitor event",
			zap.String("cycle_id", evt.CycleUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("subscriber_id", evt.SubscriberID),
			zap.String("street", evt.Street),
			zap.String("marker", evt.Marker),
			zap.Int("subscriptions", evt.Subscriptions),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
