package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abstracta/skywalking-copilot/internal/agent/domain"
	"github.com/abstracta/skywalking-copilot/internal/db/sqlc/gen"
)

type PostgresRepository struct {
	queries *gen.Queries
	now     func() time.Time
}

// NewPostgresRepository returns a chat history repository that stores each session history as a
// JSONB array.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{queries: gen.New(db), now: time.Now}
}

func (r *PostgresRepository) Load(ctx context.Context, sessionID string) ([]domain.Message, error) {
	row, err := r.queries.GetChatHistory(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var msgs []domain.Message
	if err := json.Unmarshal(row.Messages, &msgs); err != nil {
		return nil, fmt.Errorf("chat history: decode %s: %w", sessionID, err)
	}
	return msgs, nil
}

// Append concatenates msgs to the stored array in a single statement.
func (r *PostgresRepository) Append(ctx context.Context, sessionID string, msgs ...domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("chat history: encode: %w", err)
	}
	return r.queries.AppendChatHistory(ctx, gen.AppendChatHistoryParams{
		SessionID: sessionID,
		Messages:  raw,
		UpdatedAt: r.now().UTC(),
	})
}
