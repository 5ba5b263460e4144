package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/abstracta/skywalking-copilot/internal/telemetry"
	"github.com/abstracta/skywalking-copilot/internal/telemetry/domain"
)

const loggerName = "skywalking-copilot.alarms"

// recordEmitter is the part of otellog.Logger used by the emitter.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends alarm notifications as OTel log records via the
// given LoggerProvider. If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(loggerName))
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.AlarmNotification) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the notification to an OTel log record (WARN for error alarms) whose body is the
// alarm message, and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.AlarmNotification) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	rec.SetTimestamp(event.CreatedAt)
	if rec.Timestamp().IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	}
	if !event.StartTime.IsZero() {
		rec.SetObservedTimestamp(event.StartTime)
	}
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetSeverityText("INFO")
	if event.AlarmType == "Error" {
		rec.SetSeverity(otellog.SeverityWarn)
		rec.SetSeverityText("WARN")
	}
	if event.Message != "" {
		rec.SetBody(otellog.StringValue(event.Message))
	}
	attrs := []struct{ key, value string }{
		{"event_type", event.EventType},
		{"session_id", event.SessionID},
		{"alarm_id", event.AlarmID},
		{"service", event.Service},
		{"event_id", event.EventID},
		{"alarm_type", event.AlarmType},
	}
	for _, a := range attrs {
		if a.value != "" {
			rec.AddAttributes(otellog.String(a.key, a.value))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}
