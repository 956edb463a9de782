package notification

import (
	"sync"
	"time"
)

// Batcher groups notifications arriving within a time window. The window
// starts with the first notification of a batch.
type Batcher struct {
	window   time.Duration
	callback func([]Notification)

	mu      sync.Mutex
	pending []Notification
	timer   *time.Timer
}

// NewBatcher creates a new notification batcher
func NewBatcher(window time.Duration, callback func([]Notification)) *Batcher {
	return &Batcher{
		window:   window,
		callback: callback,
	}
}

// Add adds a notification to the batch
func (b *Batcher) Add(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, n)

	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
}

// take empties the batch and cancels its timer.
func (b *Batcher) take() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	toSend := b.pending
	b.pending = nil
	return toSend
}

// flush sends all pending notifications; the callback runs without the lock.
func (b *Batcher) flush() {
	if toSend := b.take(); len(toSend) > 0 {
		b.callback(toSend)
	}
}

// Flush immediately sends any pending notifications
func (b *Batcher) Flush() {
	b.flush()
}
