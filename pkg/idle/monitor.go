// Package idle tracks whether the user is idle and reports transitions
// between the idle and active states.
package idle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/idlewatch/pkg/clock"
	"github.com/Veraticus/idlewatch/pkg/interfaces"
)

var (
	// ErrInvalidConfiguration is returned when the threshold or poll interval is not positive.
	ErrInvalidConfiguration = errors.New("invalid idle configuration")

	// ErrSchedulingFailure is returned by Start when the recurring tick cannot be armed.
	ErrSchedulingFailure = errors.New("failed to schedule idle tick")
)

// Monitor samples activity on a fixed interval and flips between the
// active and idle states. The zero value is not usable; call New.
type Monitor struct {
	clock  clock.Clock
	source interfaces.ActivitySource
	logger *slog.Logger

	// mu guards the idle flag, the activity timestamp and the configuration.
	mu           sync.Mutex
	idle         bool
	lastActivity time.Time
	sawActivity  bool
	threshold    time.Duration
	pollInterval time.Duration

	// pending holds transitions not yet delivered, in the order they
	// happened. Only the goroutine that set dispatching delivers them.
	pending     []transition
	dispatching bool

	// lifeMu serializes Start and Stop.
	lifeMu sync.Mutex
	ticker clock.Ticker
	stopCh chan struct{}
	doneCh chan struct{}

	obsMu     sync.Mutex
	observers []*observer
	nextObsID uint64
}

type transition struct {
	wasIdle, isIdle bool
}

type observer struct {
	id uint64
	fn interfaces.TransitionFunc
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithActivitySource adds an external activity signal that is sampled on every tick.
func WithActivitySource(src interfaces.ActivitySource) Option {
	return func(m *Monitor) {
		m.source = src
	}
}

// WithLogger sets the logger used for lifecycle and transition events.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

// New creates a stopped monitor. It fails with ErrInvalidConfiguration when
// either duration is not positive.
func New(threshold, pollInterval time.Duration, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		clock:  clock.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.Configure(threshold, pollInterval); err != nil {
		return nil, err
	}
	return m, nil
}

// Configure stores a new threshold and poll interval. A running monitor
// keeps ticking at its old interval until it is restarted.
func (m *Monitor) Configure(threshold, pollInterval time.Duration) error {
	if threshold <= 0 {
		return fmt.Errorf("%w: threshold must be positive, got %v", ErrInvalidConfiguration, threshold)
	}
	if pollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %v", ErrInvalidConfiguration, pollInterval)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
	m.pollInterval = pollInterval
	return nil
}

// Start arms the recurring tick. Calling Start on a running monitor does nothing.
func (m *Monitor) Start() error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.ticker != nil {
		return nil
	}

	m.mu.Lock()
	interval := m.pollInterval
	threshold := m.threshold
	if !m.sawActivity && !m.idle {
		m.lastActivity = m.clock.Now()
	}
	m.mu.Unlock()

	ticker, err := m.clock.NewTicker(interval)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchedulingFailure, err)
	}

	m.ticker = ticker
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.run(ticker, m.stopCh, m.doneCh)

	m.logger.Debug("idle monitor started", "threshold", threshold, "poll_interval", interval)
	return nil
}

// Stop cancels the recurring tick and waits for an in-flight tick to finish.
// The idle flag and last activity remain readable. Stop must not be called
// from a transition observer running on the tick goroutine.
func (m *Monitor) Stop() {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.ticker == nil {
		return
	}

	m.ticker.Stop()
	close(m.stopCh)
	<-m.doneCh

	m.ticker = nil
	m.stopCh = nil
	m.doneCh = nil

	m.logger.Debug("idle monitor stopped")
}

// Running reports whether the recurring tick is armed.
func (m *Monitor) Running() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	return m.ticker != nil
}

func (m *Monitor) run(ticker clock.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-ticker.C():
			m.tick()
		case <-stop:
			return
		}
	}
}

// RecordActivity marks activity at the current time. If the monitor is idle
// it becomes active immediately and observers run on the caller's goroutine,
// unless another goroutine is already delivering transitions, in which case
// that goroutine delivers this one after the earlier ones.
func (m *Monitor) RecordActivity() {
	m.mu.Lock()
	m.lastActivity = m.clock.Now()
	m.sawActivity = true
	wasIdle := m.idle
	m.idle = false
	if wasIdle {
		m.pending = append(m.pending, transition{wasIdle: true, isIdle: false})
	}
	m.mu.Unlock()

	if wasIdle {
		m.logger.Info("user active")
		m.dispatch()
	}
}

// IsIdle returns the idle flag as of the most recent evaluation.
func (m *Monitor) IsIdle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idle
}

// LastActivity returns the time of the most recent observed activity.
func (m *Monitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// Threshold returns the configured inactivity threshold.
func (m *Monitor) Threshold() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// PollInterval returns the configured tick interval.
func (m *Monitor) PollInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollInterval
}

// OnTransition registers fn to be called on every idle/active transition.
// Observers run in registration order. The returned function unregisters
// fn and may be called more than once.
func (m *Monitor) OnTransition(fn interfaces.TransitionFunc) func() {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	m.nextObsID++
	id := m.nextObsID
	m.observers = append(m.observers, &observer{id: id, fn: fn})

	return func() {
		m.obsMu.Lock()
		defer m.obsMu.Unlock()

		for i, o := range m.observers {
			if o.id == id {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

// tick evaluates the idle condition once.
func (m *Monitor) tick() {
	// Sample outside the lock; sources may shell out.
	var sampled time.Duration
	haveSample := false
	if m.source != nil {
		d, err := m.source.IdleTime()
		if err != nil {
			m.logger.Debug("activity source unavailable", "error", err)
		} else {
			sampled = d
			haveSample = true
		}
	}

	m.mu.Lock()
	now := m.clock.Now()

	if haveSample {
		if sampled < 0 {
			sampled = 0
		}
		if at := now.Add(-sampled); at.After(m.lastActivity) {
			m.lastActivity = at
		}
	}

	elapsed := now.Sub(m.lastActivity)
	if elapsed < 0 {
		// The clock moved backwards; treat it as fresh activity.
		elapsed = 0
		m.lastActivity = now
	}

	wasIdle := m.idle
	switch {
	case elapsed >= m.threshold && !m.idle:
		m.idle = true
	case elapsed < m.threshold && m.idle:
		m.idle = false
	}
	isIdle := m.idle
	if wasIdle != isIdle {
		m.pending = append(m.pending, transition{wasIdle: wasIdle, isIdle: isIdle})
	}
	m.mu.Unlock()

	if wasIdle == isIdle {
		return
	}

	if isIdle {
		m.logger.Info("user idle", "inactive_for", elapsed.Round(time.Millisecond))
	} else {
		m.logger.Info("user active")
	}
	m.dispatch()
}

// dispatch delivers pending transitions in order. A call made while another
// dispatch is running, from an observer or another goroutine, returns at
// once and leaves its transition to the running one.
func (m *Monitor) dispatch() {
	m.mu.Lock()
	if m.dispatching {
		m.mu.Unlock()
		return
	}
	m.dispatching = true

	for len(m.pending) > 0 {
		t := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()

		m.notify(t.wasIdle, t.isIdle)

		m.mu.Lock()
	}

	m.pending = nil
	m.dispatching = false
	m.mu.Unlock()
}

func (m *Monitor) notify(wasIdle, isIdle bool) {
	m.obsMu.Lock()
	snapshot := make([]interfaces.TransitionFunc, len(m.observers))
	for i, o := range m.observers {
		snapshot[i] = o.fn
	}
	m.obsMu.Unlock()

	for _, fn := range snapshot {
		fn(wasIdle, isIdle)
	}
}

// Ensure Monitor implements the shared interfaces
var (
	_ interfaces.ActivityRecorder = (*Monitor)(nil)
	_ interfaces.StateReader      = (*Monitor)(nil)
)
