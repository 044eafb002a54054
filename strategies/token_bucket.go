package strategies

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ratekit/ratekit"
	"github.com/redis/go-redis/v9"
)

var (
	_ ratekit.Strategy = &tokenBucketLimiter{}
)

type tokenBucketLimiter struct {
	client        *redis.Client
	lastRefreshed func() time.Time
}

// NewTokenBucketLimiter creates a new Token Bucket rate limiter. The bucket
// capacity and the refill interval come from each request's rate: the bucket
// holds Rate.Events() tokens and refills fully every Rate.Period().
func NewTokenBucketLimiter(client *redis.Client, now func() time.Time) ratekit.Strategy {
	return &tokenBucketLimiter{
		client:        client,
		lastRefreshed: now,
	}
}

func (t *tokenBucketLimiter) Execute(ctx context.Context, r *ratekit.Request) (*ratekit.Result, error) {
	maxTokens := int64(r.Limit())
	refillTime := r.Window()

	// token refill works at second granularity
	refillSeconds := int64(refillTime.Seconds())
	if refillSeconds < 1 {
		refillSeconds = 1
	}

	now := t.lastRefreshed().Unix()
	lastUpdateKey := r.Key + ":lastUpdate"
	tokenCountKey := r.Key + ":tokens"

	// Fetch last update time
	lastUpdateStr, err := t.client.Get(ctx,
		lastUpdateKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get last update time: %w", err)
	}

	var lastUpdate int64
	if lastUpdateStr != "" {
		lastUpdate, err = strconv.ParseInt(lastUpdateStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last update time: %w", err)
		}
	}

	// Fetch current token count
	tokenCountStr, err := t.client.Get(ctx, tokenCountKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get token count: %w", err)
	}

	var tokenCount int64
	if tokenCountStr != "" {
		tokenCount, err = strconv.ParseInt(tokenCountStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse token count: %w", err)
		}
	} else {
		tokenCount = maxTokens
	}

	// Calculate the number of tokens to refill
	if lastUpdate > 0 {
		refillCount := (now - lastUpdate) / refillSeconds
		if refillCount > 0 {
			tokenCount += refillCount * maxTokens
			if tokenCount > maxTokens {
				tokenCount = maxTokens
			}
			lastUpdate = now
		}
	} else {
		lastUpdate = now
	}

	// Update tokens and last update time in Redis
	p := t.client.Pipeline()
	p.Set(ctx, tokenCountKey, tokenCount, 0)
	p.Set(ctx, lastUpdateKey, lastUpdate, 0)
	if _, err := p.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to update tokens and last update time: %w", err)
	}

	// Check if request can be allowed
	if tokenCount > 0 {
		tokenCount--
		p.Set(ctx, tokenCountKey, tokenCount, 0)
		if _, err := p.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to decrement token count: %w", err)
		}

		return &ratekit.Result{
			State:         ratekit.Allow,
			TotalRequests: uint64(tokenCount),
			ExpiresAt:     time.Unix(now, 0).Add(refillTime),
		}, nil
	}

	return &ratekit.Result{
		State:         ratekit.Deny,
		TotalRequests: 0,
		ExpiresAt:     time.Unix(lastUpdate, 0).Add(refillTime),
	}, nil
}
