package notification

import (
	"fmt"
	"io"
	"os"
)

// StdoutNotifier prints notifications instead of delivering them, for quiet
// runs without an ntfy topic.
type StdoutNotifier struct {
	w io.Writer
}

// NewStdoutNotifier creates a new stdout notifier
func NewStdoutNotifier() *StdoutNotifier {
	return &StdoutNotifier{w: os.Stdout}
}

// Send prints the notification
func (n *StdoutNotifier) Send(notification Notification) error {
	_, err := fmt.Fprintf(n.w, "[NOTIFICATION] %s: %s (Event: %s)\n",
		notification.Title,
		notification.Message,
		notification.Event)
	return err
}
