package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/abstracta/skywalking-copilot/internal/db/sqlc/gen"
	"github.com/abstracta/skywalking-copilot/internal/session/domain"
)

// localeSeparator joins locales in the sessions.locales column.
const localeSeparator = ","

type PostgresRepository struct {
	queries *gen.Queries
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{queries: gen.New(db)}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	s, err := r.queries.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return genSessionToDomain(&s), nil
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.queries.CreateSession(ctx, gen.CreateSessionParams{
		ID:        s.ID,
		Locales:   strings.Join(s.Locales, localeSeparator),
		CreatedAt: s.CreatedAt,
	})
	return err
}

// CreateQuestion persists an answered question. The question must have ID and SessionID set.
func (r *PostgresRepository) CreateQuestion(ctx context.Context, q *domain.Question) error {
	_, err := r.queries.CreateQuestion(ctx, gen.CreateQuestionParams{
		ID:        q.ID,
		SessionID: q.SessionID,
		Question:  q.Question,
		Answer:    q.Answer,
		CreatedAt: q.CreatedAt,
	})
	return err
}

// ListQuestions returns the questions of a session in the order they were asked.
func (r *PostgresRepository) ListQuestions(ctx context.Context, sessionID string) ([]*domain.Question, error) {
	list, err := r.queries.ListQuestionsBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Question, len(list))
	for i := range list {
		q := list[i]
		out[i] = &domain.Question{
			ID:        q.ID,
			SessionID: q.SessionID,
			Question:  q.Question,
			Answer:    q.Answer,
			CreatedAt: q.CreatedAt,
		}
	}
	return out, nil
}

func genSessionToDomain(s *gen.Session) *domain.Session {
	if s == nil {
		return nil
	}
	return &domain.Session{
		ID:        s.ID,
		Locales:   splitLocales(s.Locales),
		CreatedAt: s.CreatedAt,
	}
}

func splitLocales(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, localeSeparator)
}
