// Package telemetry publishes copilot events (new alarm notifications) to OTel logs and Kafka.
package telemetry

import (
	"context"
	"errors"

	"github.com/abstracta/skywalking-copilot/internal/telemetry/domain"
)

// EventEmitter emits alarm notifications (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.AlarmNotification) error
}

// MultiEmitter fans an event out to every emitter. Nil entries are skipped.
type MultiEmitter []EventEmitter

// Emit calls every emitter and joins their errors.
func (m MultiEmitter) Emit(ctx context.Context, event *domain.AlarmNotification) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
