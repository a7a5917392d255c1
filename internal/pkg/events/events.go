// Package events emits structured observability records.
package events

import (
	"context"
	"time"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Sink interface {
	Emit(ctx context.Context, event entity.Event)
}

// New stamps an event with the current UTC time
func New(eventType entity.EventType, sessionID string, data map[string]any) entity.Event {
	if data == nil {
		data = map[string]any{}
	}
	return entity.Event{
		Event:     eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		Data:      data,
	}
}

// LogSink writes events to the request logger, or to base when the context
// carries none
type LogSink struct {
	base *zap.Logger
}

func NewLogSink(base *zap.Logger) *LogSink {
	return &LogSink{base: base}
}

func (s *LogSink) Emit(ctx context.Context, event entity.Event) {
	logger := ctxzap.Extract(ctx)
	if !logger.Core().Enabled(zap.InfoLevel) {
		logger = s.base
	}

	fields := make([]zap.Field, 0, len(event.Data)+3)
	fields = append(fields,
		zap.String("event", string(event.Event)),
		zap.String("session_id", event.SessionID),
		zap.String("event_time", event.Timestamp),
	)
	for k, v := range event.Data {
		fields = append(fields, zap.Any(k, v))
	}

	logger.Info("event", fields...)
}

// Multi fans an event out to every sink
type Multi []Sink

func (m Multi) Emit(ctx context.Context, event entity.Event) {
	for _, s := range m {
		s.Emit(ctx, event)
	}
}
