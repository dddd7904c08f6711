package dispatch

import (
	"math/rand"
	"time"

	"warimas-pos/internal/store"
)

const BaseBackoff = 2000 * time.Millisecond

// Backoff computes retry delays for queued tickets.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
	// Jitter adds up to this fraction of the delay. Zero disables it.
	Jitter float64
	rand   func() float64
}

func NewBackoff(maxDelay time.Duration, jitter float64) Backoff {
	return Backoff{Base: BaseBackoff, Max: maxDelay, Jitter: jitter, rand: rand.Float64}
}

// RetryDelay returns Base * 2^attempts, clamped to Max.
func (b Backoff) RetryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	d := b.Base
	for i := 0; i < attempts; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// next returns the jittered delay to wait after a failed attempt.
func (b Backoff) next(attempts int) time.Duration {
	d := b.RetryDelay(attempts)
	if b.Jitter <= 0 || b.rand == nil {
		return d
	}
	return d + time.Duration(float64(d)*b.Jitter*b.rand())
}

// IsReadyForRetry reports whether item may be sent at now. Items never
// attempted are always ready.
func (b Backoff) IsReadyForRetry(item *QueueItem, now time.Time) bool {
	if item.Attempts == 0 || item.LastAttemptAt == nil {
		return true
	}
	if item.NextAttemptAt != nil {
		if next, err := store.ParseTime(*item.NextAttemptAt); err == nil {
			return !now.Before(next)
		}
	}
	last, err := store.ParseTime(*item.LastAttemptAt)
	if err != nil {
		return true
	}
	return now.Sub(last) >= b.RetryDelay(item.Attempts-1)
}
