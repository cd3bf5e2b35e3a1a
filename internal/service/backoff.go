package service

import (
	"math"
	"time"
)

// BackoffPolicy decides when a collection should be retried after its
// attempt-th dispatch. ok is false once no further retry is wanted.
type BackoffPolicy interface {
	NextRetry(attempt int, now time.Time) (at time.Time, ok bool)
}

// FixedBackoff retries at a constant interval. MaxAttempts of 0 means
// unlimited.
type FixedBackoff struct {
	Interval    time.Duration
	MaxAttempts int
}

func (b FixedBackoff) NextRetry(attempt int, now time.Time) (time.Time, bool) {
	if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
		return time.Time{}, false
	}
	return now.Add(b.Interval), true
}

// ExponentialBackoff waits Base * Factor^(attempt-1), capped at Max. A Max
// of 0 caps the wait at the longest representable duration.
type ExponentialBackoff struct {
	Base        time.Duration
	Factor      float64
	Max         time.Duration
	MaxAttempts int
}

func (b ExponentialBackoff) NextRetry(attempt int, now time.Time) (time.Time, bool) {
	if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
		return time.Time{}, false
	}

	factor := b.Factor
	if !(factor >= 1) {
		factor = 1
	}
	limit := b.Max
	if limit <= 0 {
		limit = math.MaxInt64
	}

	wait := float64(b.Base)
	for i := 1; i < attempt && wait < float64(limit); i++ {
		wait *= factor
	}
	// float64(limit) may round above limit, so clamp before converting
	if wait >= float64(limit) {
		return now.Add(limit), true
	}
	return now.Add(time.Duration(wait)), true
}

// NoRetry never schedules a retry.
type NoRetry struct{}

func (NoRetry) NextRetry(int, time.Time) (time.Time, bool) {
	return time.Time{}, false
}
