// Package ratelimit implements the QA engine's RateLimiter (C16): a global
// request ceiling layered on top of a per-user ceiling, both evaluated over
// the same sliding window. It reuses the teacher's pkg/ratelimit store,
// generalized from IP-keyed HTTP limiting to user_id-keyed QA limiting. Both
// windows are peeked before either is committed, so a request denied on one
// ceiling never consumes a slot on the other.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilfeed/vigilfeed/pkg/ratelimit"
)

const globalKey = "__global__"

// Decision mirrors spec §4.16's Allow/Check contract.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	Reason     string // "user" or "global" when denied
}

// Config holds the two ceilings, both evaluated over the same window.
type Config struct {
	WindowSize  time.Duration // default 60s
	GlobalLimit int           // G: max requests across all users per window
	UserLimit   int           // U: max requests per user per window
}

func DefaultConfig() Config {
	return Config{
		WindowSize:  60 * time.Second,
		GlobalLimit: 100,
		UserLimit:   10,
	}
}

// Limiter enforces Config.GlobalLimit and Config.UserLimit concurrently; a
// request must pass both to be allowed.
type Limiter struct {
	cfg   Config
	store ratelimit.RateLimitStore
}

func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg: cfg,
	}
	for _, o := range opts {
		o(l)
	}
	if l.store == nil {
		l.store = ratelimit.NewInMemoryRateLimitStore(ratelimit.DefaultInMemoryStoreConfig())
	}
	return l
}

type Option func(*Limiter)

// WithStore overrides the backing store, e.g. with a Redis-backed
// implementation for multi-instance deployments.
func WithStore(s ratelimit.RateLimitStore) Option {
	return func(l *Limiter) { l.store = s }
}

// Allow records a request attempt for userID and reports whether it may
// proceed. Both ceilings are peeked (read-only) before either is committed:
// a request that fails the user check never consumes a global slot, and a
// request that fails the global check is never recorded against the user.
// Only a request that passes both checks is appended to both windows.
func (l *Limiter) Allow(ctx context.Context, userID string) (Decision, error) {
	now := time.Now()
	cutoff := now.Add(-l.cfg.WindowSize)
	resetAfter := l.cfg.WindowSize

	globalCount, err := l.store.GetRequestCount(ctx, globalKey, cutoff)
	if err != nil {
		return Decision{}, fmt.Errorf("peek global count: %w", err)
	}
	if globalCount >= l.cfg.GlobalLimit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			ResetAfter: resetAfter,
			Reason:     "global",
		}, nil
	}

	userCount, err := l.store.GetRequestCount(ctx, userKey(userID), cutoff)
	if err != nil {
		return Decision{}, fmt.Errorf("peek user count: %w", err)
	}
	if userCount >= l.cfg.UserLimit {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			ResetAfter: resetAfter,
			Reason:     "user",
		}, nil
	}

	// Both checks passed: commit the request against both windows.
	if err := l.store.AddRequest(ctx, globalKey, now); err != nil {
		return Decision{}, fmt.Errorf("commit global request: %w", err)
	}
	if err := l.store.AddRequest(ctx, userKey(userID), now); err != nil {
		return Decision{}, fmt.Errorf("commit user request: %w", err)
	}

	remaining := l.cfg.UserLimit - userCount - 1
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    true,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}, nil
}

// Check peeks at userID's current standing without consuming a slot.
func (l *Limiter) Check(ctx context.Context, userID string) (Decision, error) {
	count, err := l.store.GetRequestCount(ctx, userKey(userID), time.Now().Add(-l.cfg.WindowSize))
	if err != nil {
		return Decision{}, fmt.Errorf("peek user count: %w", err)
	}
	remaining := l.cfg.UserLimit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    count < l.cfg.UserLimit,
		Remaining:  remaining,
		ResetAfter: l.cfg.WindowSize,
	}, nil
}

func userKey(userID string) string {
	return "user:" + userID
}
