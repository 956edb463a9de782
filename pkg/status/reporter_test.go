package status

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/idlewatch/pkg/config"
	"github.com/Veraticus/idlewatch/pkg/notification"
)

// stubNotifier fails while err is set.
type stubNotifier struct {
	mu  sync.Mutex
	err error
}

func (s *stubNotifier) Send(notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stubNotifier) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func TestReporter_StatusTransitions(t *testing.T) {
	indicator := NewIndicator(&bytes.Buffer{}, true)
	reporter := NewReporter(indicator)

	steps := []struct {
		report func()
		want   Status
	}{
		{reporter.ReportSending, StatusSending},
		{reporter.ReportSuccess, StatusSuccess},
		{reporter.ReportSending, StatusSending},
		{reporter.ReportFailure, StatusFailed},
	}

	for i, step := range steps {
		step.report()
		if indicator.status != step.want {
			t.Errorf("step %d: status = %v, want %v", i, indicator.status, step.want)
		}
	}
}

func TestReporter_NilIndicator(t *testing.T) {
	reporter := NewReporter(nil)

	// Should not panic
	reporter.ReportSending()
	reporter.ReportSuccess()
	reporter.ReportFailure()
}

func TestReporter_DrivenByManager(t *testing.T) {
	buf := &bytes.Buffer{}
	clk := &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	indicator := NewIndicator(buf, true, WithNow(clk.Now))
	indicator.Observe(false, true)

	notifier := &stubNotifier{}
	manager := notification.NewManager(config.DefaultConfig(), notifier, nil,
		notification.WithStatusReporter(NewReporter(indicator)))
	defer func() { _ = manager.Close() }()

	idle := notification.Notification{
		Title:   "idlewatch: idle",
		Message: "No activity for 5m0s",
		Time:    clk.Now(),
		Event:   notification.EventIdle,
	}

	buf.Reset()
	if err := manager.Send(idle); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "⟳ ntfy") {
		t.Errorf("expected in-flight marker before delivery, got %q", output)
	}
	if !strings.Contains(output, "Ⓩ idle") || !strings.Contains(output, "✓ ntfy") {
		t.Errorf("expected idle line with delivered marker, got %q", output)
	}

	notifier.setErr(errors.New("ntfy returned status 502"))
	buf.Reset()
	_ = manager.Send(idle)
	if output := buf.String(); !strings.HasSuffix(strings.TrimSuffix(output, "\0338"), "\033[31m✗ ntfy\033[0m") {
		t.Errorf("expected failure marker last, got %q", output)
	}
	if indicator.status != StatusFailed {
		t.Errorf("status = %v, want StatusFailed", indicator.status)
	}
}
