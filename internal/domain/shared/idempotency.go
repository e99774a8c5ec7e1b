package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which client-supplied keys have already
// been applied, so a retried movement is answered with its prior result
// instead of being applied twice. Claims lapse after their TTL.
type IdempotencyStore interface {
	// MarkProcessed claims a key. It returns true when this call made
	// the claim and false when the key was already claimed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether a key holds an unexpired claim.
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}
