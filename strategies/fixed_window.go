package strategies

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ratekit/ratekit"
	"github.com/redis/go-redis/v9"
)

var (
	_ ratekit.Strategy = &fixedWindowLimiter{}
)

const (
	keyDNE      = -2
	keyNoExpire = -1
)

type fixedWindowLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewFixedWindowLimiter creates a new fixed window rate limiter.
func NewFixedWindowLimiter(client *redis.Client, now func() time.Time) ratekit.Strategy {
	return &fixedWindowLimiter{
		client: client,
		now:    now,
	}
}

// Execute performs rate limiting using a fixed window strategy. The window
// length and the per-window limit both come from the request's rate.
func (f *fixedWindowLimiter) Execute(ctx context.Context, r *ratekit.Request) (*ratekit.Result, error) {
	limit := r.Limit()
	window := r.Window()

	// Redis pipeline to optimize network round trips.
	pipe := f.client.Pipeline()
	getCmd := pipe.Get(ctx, r.Key)
	ttlCmd := pipe.TTL(ctx, r.Key)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("error executing Redis pipeline for key %v: %w", r.Key, err)
	}

	var ttl time.Duration

	if duration, err := ttlCmd.Result(); err != nil || duration == keyDNE || duration == keyNoExpire {
		ttl = window
		if err := f.client.Expire(ctx, r.Key, window).Err(); err != nil {
			return nil, fmt.Errorf("error setting expiration for key %v: %w", r.Key, err)
		}
	} else {
		ttl = duration
	}

	expirationTime := f.now().Add(ttl)

	if count, err := getCmd.Uint64(); err != nil && errors.Is(err, redis.Nil) {
	} else if count >= limit {
		return &ratekit.Result{
			State:         ratekit.Deny,
			TotalRequests: count,
			ExpiresAt:     expirationTime,
		}, nil
	}

	incrementCmd := f.client.Incr(ctx, r.Key)
	requestCount, err := incrementCmd.Uint64()
	if err != nil {
		return nil, fmt.Errorf("error incrementing key %v: %w", r.Key, err)
	}

	if requestCount > limit {
		return &ratekit.Result{
			State:         ratekit.Deny,
			TotalRequests: requestCount,
			ExpiresAt:     expirationTime,
		}, nil
	}

	return &ratekit.Result{
		State:         ratekit.Allow,
		TotalRequests: requestCount,
		ExpiresAt:     expirationTime,
	}, nil
}
