// Package interfaces defines the core interfaces used throughout the application.
package interfaces

import "time"

// ActivitySource reports how long the user has been inactive according to
// some external signal (terminal multiplexer, HID subsystem, desktop session).
type ActivitySource interface {
	IdleTime() (time.Duration, error)
}

// ActivityRecorder accepts activity events from collaborators such as input hooks.
type ActivityRecorder interface {
	RecordActivity()
}

// StateReader exposes the current idle state.
type StateReader interface {
	IsIdle() bool
	LastActivity() time.Time
}

// TransitionFunc is called with the previous and new idle flag on every transition.
type TransitionFunc func(wasIdle, isIdle bool)

// RateLimiter limits notification frequency.
type RateLimiter interface {
	Allow() bool
	Reset()
}

// StatusReporter reports notification delivery status.
type StatusReporter interface {
	ReportSending()
	ReportSuccess()
	ReportFailure()
}
