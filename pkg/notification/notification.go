// Package notification delivers idle and activity transitions to the user.
package notification

import "time"

// Event names carried by notifications.
const (
	EventIdle    = "idle"
	EventActive  = "active"
	EventStartup = "startup"
	EventBatch   = "batch"
)

// Notification represents a notification to be sent.
type Notification struct {
	Title   string
	Message string
	Time    time.Time
	Event   string
}

// Notifier sends notifications.
type Notifier interface {
	Send(notification Notification) error
}
