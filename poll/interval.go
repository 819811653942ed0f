package poll

import (
	"sync"
	"time"

	"github.com/jpillora/backoff"
)

// Default adaptive interval bounds and the cadence used when no session is
// attached.
const (
	DefaultMinInterval        = 5 * time.Second
	DefaultMaxInterval        = 60 * time.Second
	DefaultBackgroundInterval = 60 * time.Second
)

// AdaptiveInterval is the self-tuning poll period: Reset pins it to the
// minimum, Increase doubles it up to the maximum. One instance exists per
// agent, shared across all conversations. Safe for concurrent use.
type AdaptiveInterval struct {
	mu sync.Mutex
	b  *backoff.Backoff
}

// NewAdaptiveInterval creates an interval bounded by [min, max], starting
// at min.
func NewAdaptiveInterval(min, max time.Duration) *AdaptiveInterval {
	return &AdaptiveInterval{
		b: &backoff.Backoff{
			Min:    min,
			Max:    max,
			Factor: 2,
			Jitter: false,
		},
	}
}

// Current returns the interval value without advancing it.
func (a *AdaptiveInterval) Current() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.b.ForAttempt(a.b.Attempt())
}

// CurrentSecs returns the current value in whole seconds, as mirrored to an
// attached session.
func (a *AdaptiveInterval) CurrentSecs() uint64 {
	return uint64(a.Current() / time.Second)
}

// Increase doubles the interval, capped at the maximum, and returns the new
// value.
func (a *AdaptiveInterval) Increase() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.b.Duration()
	return a.b.ForAttempt(a.b.Attempt())
}

// Reset returns the interval to its minimum.
func (a *AdaptiveInterval) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.b.Reset()
}
