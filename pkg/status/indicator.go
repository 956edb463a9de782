// Package status draws a one-line active/idle indicator on the terminal.
package status

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Status represents the state of the most recent notification
type Status int

const (
	StatusNone Status = iota
	StatusSending
	StatusSuccess
	StatusFailed
)

// successDisplay is how long a delivered notification stays on the line.
const successDisplay = 30 * time.Second

// Indicator manages the status display in the terminal
type Indicator struct {
	mu        sync.Mutex
	status    Status
	lastSent  time.Time
	enabled   bool
	writer    io.Writer
	idle      bool
	idleSince time.Time
	now       func() time.Time

	refreshChan chan struct{}
}

// IndicatorOption customizes an Indicator.
type IndicatorOption func(*Indicator)

// WithNow sets the time source for idle durations and the success timeout.
func WithNow(now func() time.Time) IndicatorOption {
	return func(i *Indicator) { i.now = now }
}

// NewIndicator creates a new status indicator. A disabled indicator never
// writes.
func NewIndicator(writer io.Writer, enabled bool, opts ...IndicatorOption) *Indicator {
	i := &Indicator{
		status:      StatusNone,
		writer:      writer,
		enabled:     enabled,
		now:         time.Now,
		refreshChan: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// SetStatus updates the notification status
func (i *Indicator) SetStatus(status Status) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.status = status
	if status == StatusSuccess {
		i.lastSent = i.now()
	}

	// Best effort - don't fail if we can't update the display
	_ = i.draw()
}

// Observe matches interfaces.TransitionFunc.
func (i *Indicator) Observe(wasIdle, isIdle bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.idle = isIdle
	if isIdle && !wasIdle {
		i.idleSince = i.now()
	}
	if !isIdle {
		i.idleSince = time.Time{}
	}
	_ = i.draw()
}

// draw renders the status indicator. Callers hold mu.
func (i *Indicator) draw() error {
	if !i.enabled || i.writer == nil {
		return nil
	}

	// \0337 DECSC save cursor, \033[r reset scroll region, \033[999;1H jump
	// to the last line (clamped), \033[2K clear it, \0338 DECRC restore.
	sequence := fmt.Sprintf("\0337\033[r\033[999;1H\033[2K%s\0338", i.statusText())
	_, err := fmt.Fprint(i.writer, sequence)
	return err
}

// statusText returns the coloured line contents
func (i *Indicator) statusText() string {
	now := i.now()
	var parts []string

	if i.idle {
		idleText := "\033[33mⓏ idle"
		if !i.idleSince.IsZero() {
			idleText += " " + formatElapsed(now.Sub(i.idleSince))
		}
		parts = append(parts, idleText+"\033[0m")
	} else {
		parts = append(parts, "\033[32m▶\033[0m")
	}

	switch i.status {
	case StatusSending:
		parts = append(parts, "\033[33m⟳ ntfy\033[0m")
	case StatusSuccess:
		if since := now.Sub(i.lastSent); since < successDisplay {
			text := "✓ ntfy"
			if since >= time.Second {
				text += fmt.Sprintf(" (%ds)", int(since/time.Second))
			}
			parts = append(parts, "\033[32m"+text+"\033[0m")
		}
	case StatusFailed:
		parts = append(parts, "\033[31m✗ ntfy\033[0m")
	}

	return strings.Join(parts, " ")
}

func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d/time.Minute))
	default:
		return fmt.Sprintf("%dh%02dm", int(d/time.Hour), int(d%time.Hour/time.Minute))
	}
}

// Clear removes the status indicator
func (i *Indicator) Clear() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.enabled || i.writer == nil {
		return nil
	}

	_, err := fmt.Fprint(i.writer, "\0337\033[999;1H\033[2K\0338")
	return err
}

// RequestRedraw asks the refresh loop to redraw soon, typically after the
// wrapped command wrote over the status line.
func (i *Indicator) RequestRedraw() {
	if !i.enabled {
		return
	}
	select {
	case i.refreshChan <- struct{}{}:
	default:
	}
}

// StartAutoRefresh redraws every interval and on RequestRedraw until stop
// is closed, then clears the line.
func (i *Indicator) StartAutoRefresh(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
			case <-i.refreshChan:
			case <-stop:
				_ = i.Clear()
				return
			}
			i.mu.Lock()
			_ = i.draw()
			i.mu.Unlock()
		}
	}()
}
