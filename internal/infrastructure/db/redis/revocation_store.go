package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medivex/identity-service/internal/core/ports"
)

// RevocationStore keeps denylisted token keys in Redis. Expiry is left to
// Redis' own TTL, so nothing ever sweeps the keyspace.
type RevocationStore struct {
	client redis.Cmdable
}

var _ ports.RevocationStore = (*RevocationStore)(nil)

func NewRevocationStore(client redis.Cmdable) *RevocationStore {
	return &RevocationStore{client: client}
}

// Put stores key for ttl. Re-putting an existing key refreshes its TTL.
func (s *RevocationStore) Put(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revocation put: %w", err)
	}
	return nil
}

func (s *RevocationStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("revocation exists: %w", err)
	}
	return n > 0, nil
}
