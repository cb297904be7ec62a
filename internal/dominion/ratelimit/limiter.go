// Package ratelimit caps outbound completion calls per task category with a Redis
// fixed-window counter shared by every worker replica.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"dominion-workers/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dominion:ratelimit:"

// Limiter allows at most limit calls per category per window. A nil Limiter, or one with
// limit <= 0, allows everything.
type Limiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
	logger logger.Logger
}

func New(client redis.Cmdable, limit int, window time.Duration, log logger.Logger) *Limiter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Limiter{
		client: client,
		limit:  int64(limit),
		window: window,
		logger: log,
	}
}

// Key returns the Redis key counting calls for category.
func Key(category string) string {
	return keyPrefix + category
}

// Enabled reports whether the limiter enforces anything.
func (l *Limiter) Enabled() bool {
	return l != nil && l.client != nil && l.limit > 0 && l.window > 0
}

// Allow counts one call for category and reports whether it may proceed. Redis errors
// fail open: the call is allowed and the error is returned for logging.
func (l *Limiter) Allow(ctx context.Context, category string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}

	key := Key(category)
	// INCR and EXPIRE NX run in one transaction so a counter never outlives its window,
	// even when an earlier call lost its EXPIRE.
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing call", map[string]interface{}{
			"category": category,
			"error":    err,
		})
		return true, fmt.Errorf("rate limit window: %w", err)
	}

	count := incr.Val()
	if count > l.limit {
		l.logger.Info("rate limit reached", map[string]interface{}{
			"category": category,
			"count":    count,
			"limit":    l.limit,
		})
		return false, nil
	}
	return true, nil
}

// Describe renders the configured policy, e.g. "10 calls per 1m0s".
func (l *Limiter) Describe() string {
	if !l.Enabled() {
		return "unlimited"
	}
	return fmt.Sprintf("%d calls per %s", l.limit, l.window)
}
