package strategies

import (
	"context"
	"testing"
	"time"

	"github.com/ratekit/ratekit"
	"github.com/stretchr/testify/assert"
)

func TestLocalBucketLimiter_Execute(t *testing.T) {
	tt := []struct {
		desc        string
		runs        int64
		res         *ratekit.Result
		err         error
		timeAdvance time.Duration
	}{
		{
			desc: "returns Allow for requests under limit",
			res: &ratekit.Result{
				State:         ratekit.Allow,
				TotalRequests: 5,
				ExpiresAt:     time.Date(2024, time.June, 23, 10, 15, 31, 0, time.Local),
			},
			runs: 5,
			err:  nil,
		},
		{
			desc: "returns Deny once the bucket is drained",
			res: &ratekit.Result{
				State:         ratekit.Deny,
				TotalRequests: 0,
				ExpiresAt:     time.Date(2024, time.June, 23, 10, 15, 31, 0, time.Local),
			},
			runs: 11,
			err:  nil,
		},
		{
			desc: "refills tokens as time passes",
			res: &ratekit.Result{
				State:         ratekit.Allow,
				TotalRequests: 9,
				ExpiresAt:     time.Date(2024, time.June, 23, 10, 15, 41, 0, time.Local),
			},
			runs:        11,
			timeAdvance: time.Second,
			err:         nil,
		},
	}

	for _, ts := range tt {
		t.Run(ts.desc, func(t *testing.T) {
			now := time.Date(2024, time.June, 23, 10, 15, 30, 0, time.Local)

			req := &ratekit.Request{
				Key:  "some-user",
				Rate: newRate(t, 10, 1000, 10),
			}

			limiter := NewLocalBucketLimiter(func() time.Time {
				return now
			})
			var lastRes *ratekit.Result
			var lastErr error

			for x := int64(0); x < ts.runs; x++ {
				lastRes, lastErr = limiter.Execute(context.Background(), req)
				if ts.timeAdvance != 0 {
					now = now.Add(ts.timeAdvance)
				}
			}

			assert.Equal(t, ts.res, lastRes)
			assert.Equal(t, ts.err, lastErr)
		})
	}
}

func TestLocalBucketLimiter_KeysAreIndependent(t *testing.T) {
	now := time.Date(2024, time.June, 23, 10, 15, 30, 0, time.Local)
	limiter := NewLocalBucketLimiter(func() time.Time { return now })

	rate := newRate(t, 1, 1000, 1)

	res, err := limiter.Execute(context.Background(), &ratekit.Request{Key: "user-a", Rate: rate})
	assert.NoError(t, err)
	assert.Equal(t, ratekit.Allow, res.State)

	res, err = limiter.Execute(context.Background(), &ratekit.Request{Key: "user-a", Rate: rate})
	assert.NoError(t, err)
	assert.Equal(t, ratekit.Deny, res.State)

	res, err = limiter.Execute(context.Background(), &ratekit.Request{Key: "user-b", Rate: rate})
	assert.NoError(t, err)
	assert.Equal(t, ratekit.Allow, res.State)
}
