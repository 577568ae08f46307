// README: Quote store backed by Redis string keys with TTL.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lumo/internal/types"
)

const keyPrefix = "quote:"

type Store struct {
	redis *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

func key(id types.ID) string {
	return keyPrefix + string(id)
}

func (s *Store) Save(ctx context.Context, q *Quote, ttl time.Duration) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	if err := s.redis.Set(ctx, key(q.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save quote: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Quote, error) {
	raw, err := s.redis.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quote: %w", err)
	}
	var q Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("decode quote %s: %w", id, err)
	}
	return &q, nil
}

var _ Repository = (*Store)(nil)
