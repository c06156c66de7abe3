// Package ratelimit provides a keyed token-bucket rate limiter for
// upstream calls. Each credential identity gets its own bucket, so
// rotating accounts never lets one account consume another's budget.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// KeyedLimiter manages per-key rate limiting.
type KeyedLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New creates a new keyed limiter.
// rps: requests per second allowed per key.
// burst: maximum burst size (tokens available immediately).
func New(rps float64, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until a request for the given key is allowed or the context
// is cancelled.
func (kl *KeyedLimiter) Wait(ctx context.Context, key string) error {
	return kl.getLimiter(key).Wait(ctx)
}

// Allow reports whether a request for the given key may proceed now,
// without blocking.
func (kl *KeyedLimiter) Allow(key string) bool {
	return kl.getLimiter(key).Allow()
}

// getLimiter returns the limiter for a key, creating one if needed.
func (kl *KeyedLimiter) getLimiter(key string) *rate.Limiter {
	// Fast path: read lock.
	kl.mu.RLock()
	limiter, exists := kl.limiters[key]
	kl.mu.RUnlock()

	if exists {
		return limiter
	}

	// Slow path: write lock to create.
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if limiter, exists = kl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(kl.limit, kl.burst)
	kl.limiters[key] = limiter
	return limiter
}
