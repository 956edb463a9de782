// Package session accumulates how long the user was active and idle during
// the current run, split by calendar day. Nothing is persisted.
package session

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/idlewatch/pkg/clock"
	"github.com/Veraticus/idlewatch/pkg/interfaces"
)

// Day is the time spent in each state on one calendar day.
type Day struct {
	Date   time.Time
	Active time.Duration
	Idle   time.Duration
}

// Tally is a transition observer. The idle period is backdated to the last
// recorded activity, so the threshold wait counts as idle time.
type Tally struct {
	clock clock.Clock
	state interfaces.StateReader

	mu      sync.Mutex
	running bool
	idle    bool
	since   time.Time
	days    map[time.Time]*Day
}

// New creates a tally. state may be nil, in which case idle periods start
// at the transition.
func New(clk clock.Clock, state interfaces.StateReader) *Tally {
	return &Tally{
		clock: clk,
		state: state,
		days:  make(map[time.Time]*Day),
	}
}

// Begin starts counting in the given state. Calling it while running is a
// no-op.
func (t *Tally) Begin(idle bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return
	}
	t.running = true
	t.idle = idle
	t.since = t.clock.Now()
}

// Observe matches interfaces.TransitionFunc.
func (t *Tally) Observe(wasIdle, isIdle bool) {
	if wasIdle == isIdle {
		return
	}

	now := t.clock.Now()
	boundary := now
	if isIdle && t.state != nil {
		boundary = t.state.LastActivity()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		t.running = true
		t.idle = isIdle
		t.since = now
		return
	}

	if boundary.Before(t.since) || boundary.After(now) {
		boundary = now
	}
	t.addLocked(t.since, boundary, t.idle)
	if boundary.Before(now) {
		t.addLocked(boundary, now, isIdle)
	}
	t.idle = isIdle
	t.since = now
}

// End closes the open period. Begin may be called again afterwards.
func (t *Tally) End() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.addLocked(t.since, t.clock.Now(), t.idle)
	t.running = false
}

// Days returns the totals oldest first, including the open period up to now.
func (t *Tally) Days() []Day {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make(map[time.Time]Day, len(t.days))
	for k, d := range t.days {
		snapshot[k] = *d
	}
	if t.running {
		split(t.since, t.clock.Now(), func(day time.Time, d time.Duration) {
			e := snapshot[day]
			e.Date = day
			addTo(&e, d, t.idle)
			snapshot[day] = e
		})
	}

	out := make([]Day, 0, len(snapshot))
	for _, d := range snapshot {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Write prints one line per day.
func (t *Tally) Write(w io.Writer) error {
	for _, d := range t.Days() {
		if _, err := fmt.Fprintf(w, "%s  active %8s  idle %8s\n",
			d.Date.Format("2006-01-02"), d.Active.Round(time.Second), d.Idle.Round(time.Second)); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tally) addLocked(from, to time.Time, idle bool) {
	split(from, to, func(day time.Time, d time.Duration) {
		e, ok := t.days[day]
		if !ok {
			e = &Day{Date: day}
			t.days[day] = e
		}
		addTo(e, d, idle)
	})
}

func addTo(d *Day, amount time.Duration, idle bool) {
	if idle {
		d.Idle += amount
	} else {
		d.Active += amount
	}
}

// split calls fn for each local calendar day covered by [from, to).
func split(from, to time.Time, fn func(day time.Time, d time.Duration)) {
	for from.Before(to) {
		day := startOfDay(from)
		next := day.AddDate(0, 0, 1)
		end := to
		if next.Before(end) {
			end = next
		}
		fn(day, end.Sub(from))
		from = end
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
