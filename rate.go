package ratekit

import (
	"fmt"
	"math"
)

// PrecisionTarget is the minimum ratio between the truncated integer
// representation of the event count and its raw value that Events and
// Period will accept before scaling both by a larger multiplier.
const PrecisionTarget = 0.95

var (
	// MaxValue is an effectively unbounded rate: no throttling.
	MaxValue = mustRate(math.MaxInt32, 1, math.MaxInt32)

	// ZeroValue is a rate that admits no throughput at all.
	ZeroValue = mustRate(0, 1, 1)
)

// Rate is an immutable description of a throughput rate: a number of
// events per period of time in milliseconds, constrained by a burst
// ceiling on how many events may be available at one instant.
//
// The burst constraint is folded in at construction time: if the
// requested events exceed the burst, the period is shrunk so that burst
// events per shorter period yields the same events-per-millisecond
// ratio. Periods cannot go below one millisecond; when the adjusted
// period would, the period is clamped to 1ms and the burst is scaled up
// instead, preserving the effective rate at 1ms granularity.
//
// A Rate holds no mutable state and is safe for concurrent use.
type Rate struct {
	events float64
	period float64
}

// InvalidRateConfigError reports an events/period/burst combination for
// which no period adjustment can satisfy the burst constraint.
type InvalidRateConfigError struct {
	Events float64
	Period float64
	Burst  int
}

func (e *InvalidRateConfigError) Error() string {
	return fmt.Sprintf("configured rate of %f events per %f ms cannot satisfy the requirement of %d burst events at a time",
		e.Events, e.Period, e.Burst)
}

// NewRate builds a Rate of events per period (in milliseconds), adjusted
// as needed so that no more than burst events are available at a time.
// It returns an *InvalidRateConfigError when burst is below events and
// the period or the burst is zero, since no adjustment can help then.
func NewRate(events, period float64, burst int) (Rate, error) {
	if float64(burst) >= events {
		return Rate{events: events, period: period}, nil
	}

	if period == 0 || burst == 0 {
		return Rate{}, &InvalidRateConfigError{Events: events, Period: period, Burst: burst}
	}

	// Shrink the period so burst events fit in it at the requested ratio.
	newPeriod := period * float64(burst) / events

	// Under 1ms we can instead raise the number of events consumable every ms.
	if newPeriod < 1 {
		burst = int(float64(burst) * (1 / newPeriod))
		newPeriod = 1
	}

	return Rate{events: float64(burst), period: newPeriod}, nil
}

func mustRate(events, period float64, burst int) Rate {
	r, err := NewRate(events, period, burst)
	if err != nil {
		panic(err)
	}
	return r
}

// Events returns the number of events per period as an integer. When the
// underlying event count is fractional, both Events and Period are scaled
// by the same precision multiplier so the reported ratio stays close to
// the raw one.
func (r Rate) Events() int {
	return int(r.events * r.precisionMultiplier())
}

// EventsRaw returns the number of events per period without rounding.
func (r Rate) EventsRaw() float64 {
	return r.events
}

// Period returns the period in milliseconds, scaled by the same
// precision multiplier as Events.
func (r Rate) Period() int64 {
	return int64(math.Round(r.period * r.precisionMultiplier()))
}

// PeriodRaw returns the period in milliseconds without rounding.
func (r Rate) PeriodRaw() float64 {
	return r.period
}

// precisionMultiplier picks the smallest multiplier for which truncating
// events to an integer keeps more than PrecisionTarget of its value.
// Fractional rates such as 0.2 events per period would otherwise truncate
// to zero and lose all information.
func (r Rate) precisionMultiplier() float64 {
	for _, multiplier := range []float64{1, 10, 100} {
		candidate := r.events * multiplier
		if float64(int64(candidate))/candidate > PrecisionTarget {
			return multiplier
		}
	}
	return 100
}
