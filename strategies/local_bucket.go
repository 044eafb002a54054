package strategies

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/ratekit/ratekit"
	"golang.org/x/time/rate"
)

var (
	_ ratekit.Strategy = &localBucketLimiter{}
)

// localBucketLimiter keeps an in-process token bucket per key. It needs no
// Redis, so it only coordinates within a single process.
type localBucketLimiter struct {
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewLocalBucketLimiter creates a rate limiter backed by in-process token
// buckets, one per key. The bucket for a key is sized from the first rate
// seen for it: the sustained limit comes from the raw events/period ratio
// and the burst from the integer event count.
func NewLocalBucketLimiter(now func() time.Time) ratekit.Strategy {
	return &localBucketLimiter{
		now:     now,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *localBucketLimiter) Execute(ctx context.Context, r *ratekit.Request) (*ratekit.Result, error) {
	now := l.now()

	l.mu.Lock()
	lim, ok := l.buckets[r.Key]
	if !ok {
		lim = rate.NewLimiter(limitFrom(r.Rate), r.Rate.Events())
		l.buckets[r.Key] = lim
	}
	l.mu.Unlock()

	state := ratekit.Deny
	if lim.AllowN(now, 1) {
		state = ratekit.Allow
	}

	remaining := lim.TokensAt(now)
	if remaining < 0 {
		remaining = 0
	}

	return &ratekit.Result{
		State:         state,
		TotalRequests: uint64(math.Floor(remaining)),
		ExpiresAt:     now.Add(r.Window()),
	}, nil
}

// limitFrom converts a rate descriptor into events per second using the
// raw accessors, so fractional rates keep their full precision.
func limitFrom(r ratekit.Rate) rate.Limit {
	period := r.PeriodRaw()
	if period == 0 {
		return rate.Inf
	}
	return rate.Limit(r.EventsRaw() / (period / 1000))
}
