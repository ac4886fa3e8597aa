package probe

import (
	"math"
	"math/rand"
	"time"
)

// Backoff spaces re-probes of a failing target.
type Backoff struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
}

// RetryDelay returns the wait after the given number of consecutive failures
// of a target that is probed every interval when healthy. The delay grows
// from InitialDelay by Multiplier and never exceeds MaxDelay or interval, so
// a failing target is rechecked at least as often as a healthy one. Jitter
// (with a non-nil rng) spreads the result over [delay/2, delay].
func (b Backoff) RetryDelay(failures int, interval time.Duration, rng *rand.Rand) time.Duration {
	delay := b.InitialDelay
	if delay <= 0 {
		return 0
	}
	limit := b.ceiling(interval)
	if limit <= 0 {
		limit = delay
	}
	mult := math.Max(b.Multiplier, 1)
	for i := 1; i < failures && delay < limit; i++ {
		delay = time.Duration(float64(delay) * mult)
	}
	if delay > limit {
		delay = limit
	}
	if b.Jitter && rng != nil {
		half := delay / 2
		delay = half + time.Duration(rng.Int63n(int64(delay-half)+1))
	}
	return delay
}

// ceiling is the smaller of MaxDelay and interval, ignoring unset values.
func (b Backoff) ceiling(interval time.Duration) time.Duration {
	switch {
	case b.MaxDelay <= 0:
		return interval
	case interval > 0 && interval < b.MaxDelay:
		return interval
	default:
		return b.MaxDelay
	}
}
