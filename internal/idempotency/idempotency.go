package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store remembers processed processor event ids. Keys are marked only after
// the event was applied, so a failed attempt is retried on redelivery.
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *Store) key(id string) string {
	return fmt.Sprintf("idem:%s:%s", s.prefix, id)
}

func (s *Store) Seen(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Mark(ctx context.Context, id string) error {
	return s.rdb.Set(ctx, s.key(id), time.Now().UTC().Format(time.RFC3339), s.ttl).Err()
}
