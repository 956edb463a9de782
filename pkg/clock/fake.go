package clock

import (
	"errors"
	"sync"
	"time"
)

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu        sync.Mutex
	now       time.Time
	tickers   []*fakeTicker
	tickerErr error
}

// NewFake creates a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker registers a ticker that fires as the clock is advanced.
func (f *Fake) NewTicker(d time.Duration) (Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.tickerErr != nil {
		return nil, f.tickerErr
	}
	if d <= 0 {
		return nil, errors.New("non-positive ticker interval")
	}

	t := &fakeTicker{
		clock:    f,
		interval: d,
		next:     f.now.Add(d),
		c:        make(chan time.Time),
		stopped:  make(chan struct{}),
	}
	f.tickers = append(f.tickers, t)
	return t, nil
}

// SetTickerError makes subsequent NewTicker calls fail with err.
// Pass nil to clear.
func (f *Fake) SetTickerError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickerErr = err
}

// Set moves the clock to t without firing tickers. Moving backwards is
// allowed, which is how tests simulate clock adjustments.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the clock forward by d, firing every ticker deadline that
// falls inside the window in order. Each fire blocks until the receiver
// has taken the tick or the ticker is stopped.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var due *fakeTicker
		for _, t := range f.tickers {
			if t.isStopped() {
				continue
			}
			if !t.next.After(target) && (due == nil || t.next.Before(due.next)) {
				due = t
			}
		}
		if due == nil {
			f.now = target
			f.mu.Unlock()
			return
		}
		fireAt := due.next
		f.now = fireAt
		due.next = fireAt.Add(due.interval)
		f.mu.Unlock()

		select {
		case due.c <- fireAt:
		case <-due.stopped:
		}
	}
}

// ActiveTickers returns the number of tickers that have not been stopped.
func (f *Fake) ActiveTickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, t := range f.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

type fakeTicker struct {
	clock    *Fake
	interval time.Duration
	next     time.Time
	c        chan time.Time

	stopOnce sync.Once
	stopped  chan struct{}
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.c
}

func (t *fakeTicker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopped)
	})
}

func (t *fakeTicker) isStopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

// Ensure Fake implements Clock
var _ Clock = (*Fake)(nil)
