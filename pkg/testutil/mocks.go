package testutil

import (
	"sync"
	"time"

	"github.com/Veraticus/idlewatch/pkg/interfaces"
	"github.com/Veraticus/idlewatch/pkg/notification"
)

// MockNotifier is a thread-safe mock implementation of notification.Notifier for testing
type MockNotifier struct {
	mu            sync.Mutex
	notifications []notification.Notification
	attempts      []notification.Notification // Track all send attempts
	sendErr       error
	sendDelay     time.Duration
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		notifications: []notification.Notification{},
		attempts:      []notification.Notification{},
	}
}

// Send implements the Notifier interface
func (m *MockNotifier) Send(n notification.Notification) error {
	if m.sendDelay > 0 {
		time.Sleep(m.sendDelay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Always track the attempt
	m.attempts = append(m.attempts, n)

	if m.sendErr != nil {
		return m.sendErr
	}

	m.notifications = append(m.notifications, n)
	return nil
}

// GetNotifications returns a copy of successfully sent notifications
func (m *MockNotifier) GetNotifications() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]notification.Notification, len(m.notifications))
	copy(result, m.notifications)
	return result
}

// GetAttempts returns a copy of all attempted sends (including failures)
func (m *MockNotifier) GetAttempts() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]notification.Notification, len(m.attempts))
	copy(result, m.attempts)
	return result
}

// SetError sets the error to return on Send calls
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetDelay sets a delay before each Send call
func (m *MockNotifier) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendDelay = delay
}

// Clear resets the mock state
func (m *MockNotifier) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = []notification.Notification{}
	m.attempts = []notification.Notification{}
	m.sendErr = nil
	m.sendDelay = 0
}

// MockActivitySource is a mock implementation of interfaces.ActivitySource for testing
type MockActivitySource struct {
	mu        sync.Mutex
	idleTime  time.Duration
	err       error
	callCount int
}

// NewMockActivitySource creates a new mock activity source reporting idleTime
func NewMockActivitySource(idleTime time.Duration) *MockActivitySource {
	return &MockActivitySource{
		idleTime: idleTime,
	}
}

// IdleTime implements the ActivitySource interface
func (m *MockActivitySource) IdleTime() (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if m.err != nil {
		return 0, m.err
	}
	return m.idleTime, nil
}

// SetIdleTime sets the idle time to report
func (m *MockActivitySource) SetIdleTime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idleTime = d
}

// SetError sets the error to return from IdleTime
func (m *MockActivitySource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// CallCount returns how many times IdleTime was called
func (m *MockActivitySource) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// MockActivityRecorder counts RecordActivity calls
type MockActivityRecorder struct {
	mu    sync.Mutex
	count int
}

// NewMockActivityRecorder creates a new mock activity recorder
func NewMockActivityRecorder() *MockActivityRecorder {
	return &MockActivityRecorder{}
}

// RecordActivity implements the ActivityRecorder interface
func (m *MockActivityRecorder) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
}

// Count returns how many times RecordActivity was called
func (m *MockActivityRecorder) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// MockRateLimiter is a mock implementation of interfaces.RateLimiter for testing
type MockRateLimiter struct {
	mu          sync.Mutex
	allowResult bool
	allowCount  int
	resetCount  int
}

// NewMockRateLimiter creates a new mock rate limiter
func NewMockRateLimiter(allowResult bool) *MockRateLimiter {
	return &MockRateLimiter{
		allowResult: allowResult,
	}
}

// Allow implements the RateLimiter interface
func (m *MockRateLimiter) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowCount++
	return m.allowResult
}

// Reset implements the RateLimiter interface
func (m *MockRateLimiter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCount++
}

// SetAllowResult sets the result that Allow() will return
func (m *MockRateLimiter) SetAllowResult(allow bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowResult = allow
}

// GetAllowCount returns how many times Allow was called
func (m *MockRateLimiter) GetAllowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowCount
}

// GetResetCount returns how many times Reset was called
func (m *MockRateLimiter) GetResetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetCount
}

// CountingRateLimiter is a rate limiter that allows first N calls
type CountingRateLimiter struct {
	mu           sync.Mutex
	maxAllowed   int
	currentCount int
}

// NewCountingRateLimiter creates a new counting rate limiter
func NewCountingRateLimiter(maxAllowed int) *CountingRateLimiter {
	return &CountingRateLimiter{
		maxAllowed: maxAllowed,
	}
}

// Allow implements the RateLimiter interface
func (c *CountingRateLimiter) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentCount++
	return c.currentCount <= c.maxAllowed
}

// Reset implements the RateLimiter interface
func (c *CountingRateLimiter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentCount = 0
}

// Ensure mocks implement the shared interfaces
var (
	_ notification.Notifier       = (*MockNotifier)(nil)
	_ interfaces.ActivitySource   = (*MockActivitySource)(nil)
	_ interfaces.ActivityRecorder = (*MockActivityRecorder)(nil)
	_ interfaces.RateLimiter      = (*MockRateLimiter)(nil)
	_ interfaces.RateLimiter      = (*CountingRateLimiter)(nil)
)
