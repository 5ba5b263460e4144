package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abstracta/skywalking-copilot/internal/alarm/domain"
	"github.com/abstracta/skywalking-copilot/internal/skywalking"
	swdomain "github.com/abstracta/skywalking-copilot/internal/skywalking/domain"
	telemetrydomain "github.com/abstracta/skywalking-copilot/internal/telemetry/domain"
)

type fakeSource struct {
	alarms []swdomain.Alarm
	err    error
	limit  int
}

func (f *fakeSource) FindAlarms(_ context.Context, _ skywalking.TimeRange, limit int) ([]swdomain.Alarm, error) {
	f.limit = limit
	return f.alarms, f.err
}

// fakeRepo keeps rows in memory and counts writes.
type fakeRepo struct {
	rows    map[string]map[domain.Key]*domain.PersistedEvent
	saves   int
	deletes int
	saveErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]map[domain.Key]*domain.PersistedEvent{}}
}

func (r *fakeRepo) FindBySession(_ context.Context, sessionID string) ([]*domain.PersistedEvent, error) {
	var out []*domain.PersistedEvent
	for _, e := range r.rows[sessionID] {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (r *fakeRepo) Save(_ context.Context, e *domain.PersistedEvent) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	if r.rows[e.SessionID] == nil {
		r.rows[e.SessionID] = map[domain.Key]*domain.PersistedEvent{}
	}
	if _, dup := r.rows[e.SessionID][e.Key()]; dup {
		return errors.New("duplicate key")
	}
	c := *e
	r.rows[e.SessionID][e.Key()] = &c
	r.saves++
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, e *domain.PersistedEvent) error {
	delete(r.rows[e.SessionID], e.Key())
	r.deletes++
	return nil
}

func (r *fakeRepo) Replace(ctx context.Context, stale, fresh *domain.PersistedEvent) error {
	if err := r.Delete(ctx, stale); err != nil {
		return err
	}
	return r.Save(ctx, fresh)
}

type captureEmitter struct {
	mu     sync.Mutex
	events []*telemetrydomain.AlarmNotification
	done   chan struct{}
}

func (c *captureEmitter) Emit(_ context.Context, e *telemetrydomain.AlarmNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	if c.done != nil {
		c.done <- struct{}{}
	}
	return nil
}

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func event(alarmID, service, uuid string, minute int) swdomain.AlarmEvent {
	return swdomain.AlarmEvent{
		UUID:      uuid,
		AlarmID:   alarmID,
		Name:      service,
		Service:   service,
		Type:      swdomain.AlarmTypeError,
		StartTime: base.Add(time.Duration(minute) * time.Minute),
		EndTime:   base.Add(time.Duration(minute+1) * time.Minute),
		Message:   "response time too high",
	}
}

func uuids(events []swdomain.AlarmEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.UUID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testRange() skywalking.TimeRange {
	return skywalking.TimeRange{Start: base.Add(-30 * time.Minute), End: base, Step: skywalking.StepMinute}
}

func TestFindNewAlarms_OccurrenceLifecycle(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{alarms: []swdomain.Alarm{{ID: "A1", Events: []swdomain.AlarmEvent{event("A1", "svc1", "u1", 0)}}}}
	repo := newFakeRepo()
	svc := NewService(source, repo, nil, nil)

	got, err := svc.FindNewAlarms(ctx, "s1", testRange(), 10)
	if err != nil {
		t.Fatalf("first FindNewAlarms: %v", err)
	}
	if !equal(uuids(got), []string{"u1"}) {
		t.Fatalf("first run = %v, want [u1]", uuids(got))
	}
	if source.limit != 10 {
		t.Errorf("limit = %d, want 10", source.limit)
	}

	got, err = svc.FindNewAlarms(ctx, "s1", testRange(), 10)
	if err != nil {
		t.Fatalf("second FindNewAlarms: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("second run = %v, want none", uuids(got))
	}
	if repo.saves != 1 || repo.deletes != 0 {
		t.Fatalf("writes after repeat = %d saves, %d deletes; want 1, 0", repo.saves, repo.deletes)
	}

	source.alarms = []swdomain.Alarm{{ID: "A1", Events: []swdomain.AlarmEvent{event("A1", "svc1", "u2", 5)}}}
	got, err = svc.FindNewAlarms(ctx, "s1", testRange(), 10)
	if err != nil {
		t.Fatalf("third FindNewAlarms: %v", err)
	}
	if !equal(uuids(got), []string{"u2"}) {
		t.Fatalf("third run = %v, want [u2]", uuids(got))
	}
	if repo.saves != 2 || repo.deletes != 1 {
		t.Errorf("writes = %d saves, %d deletes; want 2, 1", repo.saves, repo.deletes)
	}
	row := repo.rows["s1"][domain.Key{AlarmID: "A1", Service: "svc1"}]
	if row == nil || row.EventID != "u2" {
		t.Errorf("persisted row = %+v, want u2", row)
	}
}

func TestFindNewAlarms_EmptyPersistedEmitsAll(t *testing.T) {
	source := &fakeSource{alarms: []swdomain.Alarm{
		{ID: "A1", Events: []swdomain.AlarmEvent{event("A1", "svc2", "a", 0), event("A1", "svc1", "b", 1)}},
		{ID: "A2", Events: []swdomain.AlarmEvent{event("A2", "svc1", "c", 2)}},
	}}
	repo := newFakeRepo()
	got, err := NewService(source, repo, nil, nil).FindNewAlarms(context.Background(), "s1", testRange(), 10)
	if err != nil {
		t.Fatalf("FindNewAlarms: %v", err)
	}
	if !equal(uuids(got), []string{"a", "b", "c"}) {
		t.Errorf("emitted = %v, want [a b c]", uuids(got))
	}
	if repo.saves != 3 {
		t.Errorf("saves = %d, want 3", repo.saves)
	}
}

func TestFindNewAlarms_SessionsAreIndependent(t *testing.T) {
	source := &fakeSource{alarms: []swdomain.Alarm{{ID: "A1", Events: []swdomain.AlarmEvent{event("A1", "svc1", "u1", 0)}}}}
	svc := NewService(source, newFakeRepo(), nil, nil)
	for _, session := range []string{"s1", "s2"} {
		got, err := svc.FindNewAlarms(context.Background(), session, testRange(), 10)
		if err != nil {
			t.Fatalf("FindNewAlarms(%s): %v", session, err)
		}
		if len(got) != 1 {
			t.Errorf("session %s got %d events, want 1", session, len(got))
		}
	}
}

func TestFindNewAlarms_Errors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(&fakeSource{err: boom}, newFakeRepo(), nil, nil).
		FindNewAlarms(context.Background(), "s1", testRange(), 10)
	if !errors.Is(err, boom) {
		t.Errorf("fetch err = %v, want boom", err)
	}

	source := &fakeSource{alarms: []swdomain.Alarm{{ID: "A1", Events: []swdomain.AlarmEvent{event("A1", "svc1", "u1", 0)}}}}
	repo := newFakeRepo()
	repo.saveErr = boom
	got, err := NewService(source, repo, nil, nil).FindNewAlarms(context.Background(), "s1", testRange(), 10)
	if !errors.Is(err, boom) || got != nil {
		t.Errorf("save failure = %v, %v; want nil, boom", got, err)
	}
}

func TestFindNewAlarms_PublishesNotifications(t *testing.T) {
	source := &fakeSource{alarms: []swdomain.Alarm{{ID: "A1", Events: []swdomain.AlarmEvent{event("A1", "svc1", "u1", 0)}}}}
	emitter := &captureEmitter{done: make(chan struct{}, 1)}
	svc := NewService(source, newFakeRepo(), emitter, nil)
	if _, err := svc.FindNewAlarms(context.Background(), "s1", testRange(), 10); err != nil {
		t.Fatalf("FindNewAlarms: %v", err)
	}
	select {
	case <-emitter.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not emitted")
	}
	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	n := emitter.events[0]
	if n.EventType != telemetrydomain.EventTypeNewAlarm || n.SessionID != "s1" || n.EventID != "u1" || n.AlarmType != "Error" {
		t.Errorf("notification = %+v", n)
	}
}

func TestLatestEvents(t *testing.T) {
	alarms := []swdomain.Alarm{
		{ID: "A1", Events: []swdomain.AlarmEvent{
			event("A1", "svc1", "old", 0),
			event("A1", "svc2", "other", 1),
			event("A1", "svc1", "new", 5),
			event("A1", "svc1", "older", 3),
			event("A1", "svc2", "tie", 1),
		}},
		{ID: "A2", Events: []swdomain.AlarmEvent{event("", "svc1", "fills-id", 0)}},
	}
	got := LatestEvents(alarms)
	if !equal(uuids(got), []string{"new", "other", "fills-id"}) {
		t.Errorf("LatestEvents = %v, want [new other fills-id]", uuids(got))
	}
	if got[2].AlarmID != "A2" {
		t.Errorf("AlarmID = %q, want A2", got[2].AlarmID)
	}
}
