package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"assistant/internal/booking"
)

const keyPrefix = "assistant:session:"

// Store keeps sessions as JSON values that expire after ttl of inactivity.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Connect opens a client and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *Store) Load(ctx context.Context, id string) (*booking.ConversationState, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return booking.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	state := booking.NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return state, nil
}

func (s *Store) Save(ctx context.Context, id string, state *booking.ConversationState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+id, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, keyPrefix+id).Err()
}
