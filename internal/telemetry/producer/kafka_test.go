package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/abstracta/skywalking-copilot/internal/telemetry/domain"
)

type fakeWriter struct {
	msgs     []kafka.Message
	err      error
	closed   int
	deadline bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

func TestNewKafkaProducer_Disabled(t *testing.T) {
	if p := NewKafkaProducer(nil, "copilot-alarms"); p != nil {
		t.Error("producer without brokers should be nil")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("producer without topic should be nil")
	}
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &domain.AlarmNotification{}); err != nil {
		t.Errorf("nil producer Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close: %v", err)
	}
}

func TestNewKafkaProducer(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"}, "copilot-alarms")
	if p == nil {
		t.Fatal("NewKafkaProducer returned nil")
	}
	if p.topic != "copilot-alarms" {
		t.Errorf("topic = %q", p.topic)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaProducer{writer: w, topic: "copilot-alarms"}
	event := &domain.AlarmNotification{
		EventType: domain.EventTypeNewAlarm,
		SessionID: "sess-1",
		AlarmID:   "A1",
		Service:   "songs",
		EventID:   "u2",
	}
	if err := p.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "sess-1" {
		t.Errorf("key = %q, want sess-1", msg.Key)
	}
	var got domain.AlarmNotification
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.AlarmID != "A1" || got.EventID != "u2" || got.Service != "songs" {
		t.Errorf("payload = %+v", got)
	}
	if !w.deadline {
		t.Error("write should be bounded by a deadline")
	}
	if err := p.Emit(context.Background(), nil); err != nil || len(w.msgs) != 1 {
		t.Error("nil event should not be written")
	}
}

func TestKafkaProducer_EmitError(t *testing.T) {
	want := errors.New("leader not available")
	p := &KafkaProducer{writer: &fakeWriter{err: want}, topic: "t"}
	if err := p.Emit(context.Background(), &domain.AlarmNotification{}); !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}
