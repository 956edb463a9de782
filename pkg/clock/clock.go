// Package clock abstracts time so that idle evaluation can be driven
// deterministically in tests.
package clock

import (
	"fmt"
	"time"
)

// Clock provides the current time and recurring tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) (Ticker, error)
}

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the wall clock backed by the time package.
type Real struct{}

// New returns the real clock.
func New() Real {
	return Real{}
}

// Now returns time.Now, which carries a monotonic reading.
func (Real) Now() time.Time {
	return time.Now()
}

// NewTicker creates a time.Ticker. It fails instead of panicking on a
// non-positive interval.
func (Real) NewTicker(d time.Duration) (Ticker, error) {
	if d <= 0 {
		return nil, fmt.Errorf("non-positive ticker interval %v", d)
	}
	return &realTicker{t: time.NewTicker(d)}, nil
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time {
	return r.t.C
}

func (r *realTicker) Stop() {
	r.t.Stop()
}

// Ensure Real implements Clock
var _ Clock = Real{}
