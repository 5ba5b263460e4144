package domain

import "time"

// Session is a conversation with the copilot. Locales are the user's preferred languages, most
// preferred first.
type Session struct {
	ID        string
	Locales   []string
	CreatedAt time.Time
}

// Question is a question asked in a session together with the answer the copilot streamed back.
type Question struct {
	ID        string
	SessionID string
	Question  string
	Answer    string
	CreatedAt time.Time
}
