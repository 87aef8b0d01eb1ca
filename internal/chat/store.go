package chat

import (
	"context"
	"errors"
	"time"

	"chem-assistant/internal/llm"
)

var ErrNotFound = errors.New("conversation not found")

// Conversation is the server-side memory of one session.
type Conversation struct {
	SessionID    string        `json:"session_id"`
	History      []llm.Message `json:"history"`
	LastQuestion string        `json:"last_question,omitempty"`
	LastAnswer   string        `json:"last_answer,omitempty"`
	LastImage    *llm.Image    `json:"last_image,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Store persists conversations keyed by session id.
type Store interface {
	// Get returns ErrNotFound for unknown or expired sessions.
	Get(ctx context.Context, sessionID string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	Close() error
}
