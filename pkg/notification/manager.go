package notification

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/idlewatch/pkg/config"
	"github.com/Veraticus/idlewatch/pkg/interfaces"
)

// Manager orchestrates notification sending with batching and rate limiting.
// Delivery is best effort: failures are logged and reported, never returned
// to the caller of a batched send.
type Manager struct {
	notifier    Notifier
	rateLimiter interfaces.RateLimiter
	batcher     *Batcher
	status      interfaces.StatusReporter
	logger      *slog.Logger

	mu     sync.Mutex
	closed bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStatusReporter reports every delivery attempt to r.
func WithStatusReporter(r interfaces.StatusReporter) ManagerOption {
	return func(m *Manager) { m.status = r }
}

// WithManagerLogger sets the logger used for delivery failures.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a new notification manager. rateLimiter may be nil.
func NewManager(cfg *config.Config, notifier Notifier, rateLimiter interfaces.RateLimiter, opts ...ManagerOption) *Manager {
	m := &Manager{
		notifier:    notifier,
		rateLimiter: rateLimiter,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.BatchWindow > 0 {
		m.batcher = NewBatcher(cfg.BatchWindow, m.sendBatch)
	}

	return m
}

// NewRateLimiter builds the limiter described by cfg, or nil when rate
// limiting is disabled.
func NewRateLimiter(cfg config.RateLimitConfig) interfaces.RateLimiter {
	if cfg.MaxMessages <= 0 || cfg.Window <= 0 {
		return nil
	}
	return NewTokenBucketRateLimiter(cfg.MaxMessages, cfg.Window/time.Duration(cfg.MaxMessages))
}

// Send sends or batches a notification. Rate-limited notifications are
// dropped silently.
func (m *Manager) Send(notification Notification) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("notification manager closed")
	}
	if m.rateLimiter != nil && !m.rateLimiter.Allow() {
		m.mu.Unlock()
		m.logger.Debug("notification rate limited", "event", notification.Event)
		return nil
	}
	batcher := m.batcher
	m.mu.Unlock()

	if batcher != nil {
		batcher.Add(notification)
		return nil
	}

	return m.deliver(notification)
}

func (m *Manager) deliver(n Notification) error {
	if m.status != nil {
		m.status.ReportSending()
	}

	if err := m.notifier.Send(n); err != nil {
		m.logger.Warn("notification failed", "event", n.Event, "error", err)
		if m.status != nil {
			m.status.ReportFailure()
		}
		return err
	}

	m.logger.Debug("notification sent", "event", n.Event, "title", n.Title)
	if m.status != nil {
		m.status.ReportSuccess()
	}
	return nil
}

// sendBatch sends a batch of notifications as a single notification
func (m *Manager) sendBatch(notifications []Notification) {
	switch len(notifications) {
	case 0:
		return
	case 1:
		_ = m.deliver(notifications[0])
		return
	}

	_ = m.deliver(Notification{
		Title:   fmt.Sprintf("idlewatch: %d transitions", len(notifications)),
		Message: formatBatchMessage(notifications),
		Time:    time.Now(),
		Event:   EventBatch,
	})
}

// Close flushes pending batches. Sends after Close fail.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	batcher := m.batcher
	m.mu.Unlock()

	if batcher != nil {
		batcher.Flush()
	}

	return nil
}

// formatBatchMessage lists one line per notification, oldest first.
func formatBatchMessage(notifications []Notification) string {
	var b strings.Builder
	for i, n := range notifications {
		if i > 0 {
			b.WriteByte('\n')
		}
		if !n.Time.IsZero() {
			b.WriteString(n.Time.Format("15:04:05"))
			b.WriteByte(' ')
		}
		b.WriteString(n.Event)
		b.WriteString(": ")
		b.WriteString(n.Message)
	}
	return b.String()
}
