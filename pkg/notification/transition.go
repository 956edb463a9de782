package notification

import (
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/idlewatch/pkg/config"
	"github.com/Veraticus/idlewatch/pkg/interfaces"
)

// TransitionNotifier turns idle/active transitions into notifications.
// Register Observe with the monitor. Deliveries run on a background
// goroutine, one at a time and in the order observed, so a slow server
// never stalls the monitor's tick.
type TransitionNotifier struct {
	notifier  Notifier
	state     interfaces.StateReader
	notifyOn  string
	threshold time.Duration
	now       func() time.Time

	mu         sync.Mutex
	idleSince  time.Time
	queue      []Notification
	delivering bool

	wg sync.WaitGroup
}

// TransitionOption customizes a TransitionNotifier.
type TransitionOption func(*TransitionNotifier)

// WithTransitionClock sets the time source used for notification times and
// durations. It should match the monitor's clock.
func WithTransitionClock(now func() time.Time) TransitionOption {
	return func(t *TransitionNotifier) { t.now = now }
}

// NewTransitionNotifier sends through notifier for the transitions selected
// by notifyOn (config.NotifyIdle, NotifyActive or NotifyBoth). state supplies
// the last activity time when the user goes idle.
func NewTransitionNotifier(notifier Notifier, state interfaces.StateReader, notifyOn string, threshold time.Duration, opts ...TransitionOption) *TransitionNotifier {
	t := &TransitionNotifier{
		notifier:  notifier,
		state:     state,
		notifyOn:  notifyOn,
		threshold: threshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe matches interfaces.TransitionFunc.
func (t *TransitionNotifier) Observe(wasIdle, isIdle bool) {
	if wasIdle == isIdle {
		return
	}

	now := t.now()
	var n Notification

	t.mu.Lock()
	if isIdle {
		t.idleSince = t.state.LastActivity()
		if t.idleSince.IsZero() || t.idleSince.After(now) {
			t.idleSince = now.Add(-t.threshold)
		}
		n = Notification{
			Title:   "idlewatch: idle",
			Message: fmt.Sprintf("No activity for %s", now.Sub(t.idleSince).Round(time.Second)),
			Time:    now,
			Event:   EventIdle,
		}
	} else {
		msg := "Activity resumed"
		if !t.idleSince.IsZero() {
			msg = fmt.Sprintf("Back after %s", now.Sub(t.idleSince).Round(time.Second))
		}
		t.idleSince = time.Time{}
		n = Notification{
			Title:   "idlewatch: active",
			Message: msg,
			Time:    now,
			Event:   EventActive,
		}
	}
	if !t.wants(isIdle) {
		t.mu.Unlock()
		return
	}

	t.queue = append(t.queue, n)
	if t.delivering {
		t.mu.Unlock()
		return
	}
	t.delivering = true
	t.wg.Add(1)
	t.mu.Unlock()

	go t.deliver()
}

// deliver drains the queue and exits once it is empty.
func (t *TransitionNotifier) deliver() {
	defer t.wg.Done()

	for {
		t.mu.Lock()
		if len(t.queue) == 0 {
			t.delivering = false
			t.mu.Unlock()
			return
		}
		n := t.queue[0]
		t.queue = t.queue[1:]
		t.mu.Unlock()

		_ = t.notifier.Send(n)
	}
}

func (t *TransitionNotifier) wants(isIdle bool) bool {
	switch t.notifyOn {
	case config.NotifyBoth:
		return true
	case config.NotifyActive:
		return !isIdle
	default:
		return isIdle
	}
}

// Wait blocks until every notification queued by Observe has been handed
// to the notifier.
func (t *TransitionNotifier) Wait() {
	t.wg.Wait()
}
