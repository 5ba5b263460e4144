package repository

import (
	"context"

	"github.com/abstracta/skywalking-copilot/internal/agent/domain"
)

// Repository persists the chat history of each session.
type Repository interface {
	// Load returns the session messages in the order they were appended. A session without history
	// returns (nil, nil).
	Load(ctx context.Context, sessionID string) ([]domain.Message, error)
	// Append adds messages to the end of the session history.
	Append(ctx context.Context, sessionID string, msgs ...domain.Message) error
}
