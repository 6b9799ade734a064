package ports

import (
	"context"
	"time"
)

// RevocationStore is the shared, externally durable key store behind the
// revocation registry. Entries expire on their own after ttl.
type RevocationStore interface {
	Put(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
}
