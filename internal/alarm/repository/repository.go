package repository

import (
	"context"

	"github.com/abstracta/skywalking-copilot/internal/alarm/domain"
)

// Repository defines persistence for the alarm events already shown to each session.
type Repository interface {
	FindBySession(ctx context.Context, sessionID string) ([]*domain.PersistedEvent, error)
	Save(ctx context.Context, e *domain.PersistedEvent) error
	// Replace deletes stale and saves fresh atomically. Both must share the same session and Key.
	Replace(ctx context.Context, stale, fresh *domain.PersistedEvent) error
}
