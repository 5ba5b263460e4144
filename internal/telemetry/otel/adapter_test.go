package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/abstracta/skywalking-copilot/internal/telemetry/domain"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("noop Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &domain.AlarmNotification{AlarmID: "A1"}); err != nil {
		t.Errorf("noop Emit(ctx, event): %v", err)
	}
}

func TestEmit_WithProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
	if err := em.Emit(context.Background(), &domain.AlarmNotification{AlarmID: "A1"}); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec   otellog.Record
	calls int
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
	r.calls++
}

func attributes(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	created := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	start := created.Add(-5 * time.Minute)
	event := &domain.AlarmNotification{
		EventType: domain.EventTypeNewAlarm,
		SessionID: "sess1",
		AlarmID:   "A1",
		Service:   "songs",
		EventID:   "u1",
		AlarmType: "Error",
		Message:   "Response time of service songs is more than 1000ms",
		StartTime: start,
		CreatedAt: created,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec

	if got := rec.Body().AsString(); got != event.Message {
		t.Errorf("body = %q, want %q", got, event.Message)
	}
	if !rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), created)
	}
	if !rec.ObservedTimestamp().Equal(start) {
		t.Errorf("observed timestamp = %v, want %v", rec.ObservedTimestamp(), start)
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want WARN", rec.Severity())
	}
	want := map[string]string{
		"event_type": domain.EventTypeNewAlarm, "session_id": "sess1", "alarm_id": "A1",
		"service": "songs", "event_id": "u1", "alarm_type": "Error",
	}
	attrs := attributes(rec)
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestEmit_EmptyFieldsAreOmitted(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	if err := em.Emit(context.Background(), &domain.AlarmNotification{AlarmID: "A1", AlarmType: "Normal"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if !rec.Body().Empty() {
		t.Error("body should be empty when message is empty")
	}
	if rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want INFO", rec.Severity())
	}
	attrs := attributes(rec)
	if len(attrs) != 2 || attrs["alarm_id"] != "A1" || attrs["alarm_type"] != "Normal" {
		t.Errorf("attributes = %v", attrs)
	}
}

func TestEmit_ZeroCreatedAt_SetsCurrentTime(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), &domain.AlarmNotification{AlarmID: "A1"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	after := time.Now().UTC()
	ts := cap.rec.Timestamp()
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp = %v, should be between %v and %v", ts, before, after)
	}
}

func TestEmit_NilEventNotEmitted(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if cap.calls != 0 {
		t.Errorf("logger called %d times, want 0", cap.calls)
	}
}
