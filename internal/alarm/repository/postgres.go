package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/abstracta/skywalking-copilot/internal/alarm/domain"
	"github.com/abstracta/skywalking-copilot/internal/db"
	"github.com/abstracta/skywalking-copilot/internal/db/sqlc/gen"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db      *sql.DB
	queries *gen.Queries
}

// NewPostgresRepository returns an alarm event repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn, queries: gen.New(conn)}
}

// FindBySession returns the events persisted for the session. Returns (nil, error) only on database errors.
func (r *PostgresRepository) FindBySession(ctx context.Context, sessionID string) ([]*domain.PersistedEvent, error) {
	list, err := r.queries.ListAlarmEventsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.PersistedEvent, len(list))
	for i := range list {
		out[i] = genAlarmEventToDomain(&list[i])
	}
	return out, nil
}

// Save inserts the event. Fails if an event with the same session and key exists.
func (r *PostgresRepository) Save(ctx context.Context, e *domain.PersistedEvent) error {
	return save(ctx, r.queries, e)
}

// Replace deletes stale and inserts fresh in one transaction.
func (r *PostgresRepository) Replace(ctx context.Context, stale, fresh *domain.PersistedEvent) error {
	if stale.SessionID != fresh.SessionID || stale.Key() != fresh.Key() {
		return fmt.Errorf("alarm: replace across keys %v and %v", stale.Key(), fresh.Key())
	}
	return db.InTx(ctx, r.db, func(tx *sql.Tx) error {
		q := r.queries.WithTx(tx)
		if _, err := q.DeleteAlarmEvent(ctx, deleteParams(stale)); err != nil {
			return err
		}
		return save(ctx, q, fresh)
	})
}

func save(ctx context.Context, q *gen.Queries, e *domain.PersistedEvent) error {
	return q.CreateAlarmEvent(ctx, gen.CreateAlarmEventParams{
		SessionID: e.SessionID,
		AlarmID:   e.AlarmID,
		Service:   e.Service,
		ID:        e.EventID,
		EventType: e.EventType,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Message:   e.Message,
	})
}

func deleteParams(e *domain.PersistedEvent) gen.DeleteAlarmEventParams {
	return gen.DeleteAlarmEventParams{SessionID: e.SessionID, AlarmID: e.AlarmID, Service: e.Service}
}

func genAlarmEventToDomain(e *gen.AlarmEvent) *domain.PersistedEvent {
	if e == nil {
		return nil
	}
	return &domain.PersistedEvent{
		SessionID: e.SessionID,
		AlarmID:   e.AlarmID,
		Service:   e.Service,
		EventID:   e.ID,
		EventType: e.EventType,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Message:   e.Message,
	}
}
