package memory

import (
	"context"
	"sync"

	"assistant/internal/booking"
)

// Store holds sessions in process memory. States are copied on the way in
// and out so callers never share a draft map.
type Store struct {
	mu       sync.Mutex
	sessions map[string]booking.ConversationState
}

func New() *Store {
	return &Store{sessions: make(map[string]booking.ConversationState)}
}

func (s *Store) Load(_ context.Context, id string) (*booking.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[id]
	if !ok {
		return booking.NewState(), nil
	}
	return clone(st), nil
}

func (s *Store) Save(_ context.Context, id string, state *booking.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = *clone(*state)
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func clone(st booking.ConversationState) *booking.ConversationState {
	st.Draft = st.Draft.Clone()
	st.Prefill = st.Prefill.Clone()
	return &st
}
