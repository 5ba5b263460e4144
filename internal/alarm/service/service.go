// Package service implements new-alarm detection: it compares the alarm events fetched from
// SkyWalking with the ones already shown to a session and returns only new or re-fired occurrences.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abstracta/skywalking-copilot/internal/alarm/domain"
	"github.com/abstracta/skywalking-copilot/internal/alarm/repository"
	"github.com/abstracta/skywalking-copilot/internal/skywalking"
	swdomain "github.com/abstracta/skywalking-copilot/internal/skywalking/domain"
	"github.com/abstracta/skywalking-copilot/internal/telemetry"
	telemetrydomain "github.com/abstracta/skywalking-copilot/internal/telemetry/domain"
)

// AlarmSource fetches alarms from the telemetry backend.
type AlarmSource interface {
	FindAlarms(ctx context.Context, tr skywalking.TimeRange, limit int) ([]swdomain.Alarm, error)
}

// Service finds the alarm occurrences a session has not seen yet.
type Service struct {
	source  AlarmSource
	repo    repository.Repository
	emitter telemetry.EventEmitter
	logger  *zap.Logger
	now     func() time.Time
}

// NewService returns an alarm service. emitter may be nil to disable notifications.
func NewService(source AlarmSource, repo repository.Repository, emitter telemetry.EventEmitter, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:  source,
		repo:    repo,
		emitter: emitter,
		logger:  logger.Named("alarm"),
		now:     time.Now,
	}
}

// FindNewAlarms fetches up to limit alarms in tr and returns, for each (alarm, service), the latest
// event unless it is the one already shown to the session. Returned events are recorded as shown.
// Order: alarms in backend order, services in first-seen order within an alarm.
//
// Each occurrence is persisted on its own: a failure part way returns the error and leaves earlier
// occurrences recorded, so they are not shown again on retry.
func (s *Service) FindNewAlarms(ctx context.Context, sessionID string, tr skywalking.TimeRange, limit int) ([]swdomain.AlarmEvent, error) {
	alarms, err := s.source.FindAlarms(ctx, tr, limit)
	if err != nil {
		return nil, fmt.Errorf("alarm: fetch: %w", err)
	}
	current := LatestEvents(alarms)
	if len(current) == 0 {
		return nil, nil
	}
	persisted, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("alarm: load known events: %w", err)
	}
	known := make(map[domain.Key]*domain.PersistedEvent, len(persisted))
	for _, p := range persisted {
		known[p.Key()] = p
	}

	var fresh []swdomain.AlarmEvent
	for _, e := range current {
		row := toPersisted(sessionID, e)
		stale, seen := known[row.Key()]
		switch {
		case !seen:
			if err := s.repo.Save(ctx, row); err != nil {
				return nil, fmt.Errorf("alarm: save %s/%s: %w", e.AlarmID, e.Service, err)
			}
		case stale.EventID != e.UUID:
			if err := s.repo.Replace(ctx, stale, row); err != nil {
				return nil, fmt.Errorf("alarm: replace %s/%s: %w", e.AlarmID, e.Service, err)
			}
		default:
			continue
		}
		s.logger.Debug("new alarm occurrence",
			zap.String("session_id", sessionID),
			zap.String("alarm_id", e.AlarmID),
			zap.String("service", e.Service),
			zap.String("event_id", e.UUID))
		telemetry.EmitAsync(s.emitter, ctx, s.notification(sessionID, e))
		fresh = append(fresh, e)
	}
	return fresh, nil
}

// LatestEvents keeps, for each (alarm id, service), the event with the latest start time. Ties keep
// the first event seen.
func LatestEvents(alarms []swdomain.Alarm) []swdomain.AlarmEvent {
	var out []swdomain.AlarmEvent
	pos := make(map[domain.Key]int)
	for _, a := range alarms {
		for _, e := range a.Events {
			if e.AlarmID == "" {
				e.AlarmID = a.ID
			}
			k := domain.Key{AlarmID: e.AlarmID, Service: e.Service}
			i, ok := pos[k]
			if !ok {
				pos[k] = len(out)
				out = append(out, e)
				continue
			}
			if e.StartTime.After(out[i].StartTime) {
				out[i] = e
			}
		}
	}
	return out
}

func toPersisted(sessionID string, e swdomain.AlarmEvent) *domain.PersistedEvent {
	return &domain.PersistedEvent{
		SessionID: sessionID,
		AlarmID:   e.AlarmID,
		Service:   e.Service,
		EventID:   e.UUID,
		EventType: string(e.Type),
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Message:   e.Message,
	}
}

func (s *Service) notification(sessionID string, e swdomain.AlarmEvent) *telemetrydomain.AlarmNotification {
	return &telemetrydomain.AlarmNotification{
		EventType: telemetrydomain.EventTypeNewAlarm,
		SessionID: sessionID,
		AlarmID:   e.AlarmID,
		Service:   e.Service,
		EventID:   e.UUID,
		AlarmType: string(e.Type),
		Message:   e.Message,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		CreatedAt: s.now().UTC(),
	}
}
