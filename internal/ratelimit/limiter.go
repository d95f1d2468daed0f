package ratelimit

import (
	"context"
	"time"
)

// RateLimiter throttles calls to an external provider, keyed by provider name.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}

// Locker hands out short-lived, exclusive claims on a named resource.
type Locker interface {
	// TryAcquire claims name for ttl. It reports false when someone else holds it.
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}
