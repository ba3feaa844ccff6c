package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func key(actorID int64) string {
	return fmt.Sprintf("session:%d", actorID)
}

func (s *RedisStore) Put(ctx context.Context, actorID int64, state *State, ttl time.Duration) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, key(actorID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, actorID int64) (*State, error) {
	payload, err := s.client.Get(ctx, key(actorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) Delete(ctx context.Context, actorID int64) error {
	if err := s.client.Del(ctx, key(actorID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
