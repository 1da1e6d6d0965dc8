package session

import (
	"context"

	"assistant/internal/booking"
)

// Store keeps one ConversationState per session id. Load returns a fresh
// idle state for unknown sessions.
type Store interface {
	Load(ctx context.Context, id string) (*booking.ConversationState, error)
	Save(ctx context.Context, id string, state *booking.ConversationState) error
	Delete(ctx context.Context, id string) error
}
