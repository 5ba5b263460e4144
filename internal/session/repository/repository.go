package repository

import (
	"context"

	"github.com/abstracta/skywalking-copilot/internal/session/domain"
)

// Repository defines persistence for sessions and their questions.
type Repository interface {
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	CreateQuestion(ctx context.Context, q *domain.Question) error
	ListQuestions(ctx context.Context, sessionID string) ([]*domain.Question, error)
}
