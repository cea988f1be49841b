// Package lock provides TTL-bounded, non-blocking mutual exclusion for
// operations that must not run concurrently across processes.
package lock

import (
	"context"
	"time"
)

// DefaultTTL bounds how long a crashed holder can block other processes.
const DefaultTTL = 3 * time.Minute

// Locker is an atomic set-if-absent-with-TTL lock.
type Locker interface {
	// TryAcquire takes the lock for key without blocking. It returns false
	// with a nil error when the lock is held by someone else.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops a lock held by this Locker. Releasing a lock that has
	// expired or was never held is not an error.
	Release(ctx context.Context, key string) error
}
