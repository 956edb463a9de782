package status

import "github.com/Veraticus/idlewatch/pkg/interfaces"

// Reporter lets the notification manager drive the ntfy marker on the
// idle/active line. Each call redraws the line, so an idle notification
// shows ⟳ while it is in flight and ✓ or ✗ once delivery settles.
type Reporter struct {
	indicator *Indicator
}

// NewReporter wraps indicator. With a nil indicator, as when idlewatch runs
// quiet, every report is a no-op.
func NewReporter(indicator *Indicator) *Reporter {
	return &Reporter{indicator: indicator}
}

var _ interfaces.StatusReporter = (*Reporter)(nil)

func (r *Reporter) set(s Status) {
	if r.indicator != nil {
		r.indicator.SetStatus(s)
	}
}

// ReportSending marks a transition notification as in flight.
func (r *Reporter) ReportSending() { r.set(StatusSending) }

// ReportSuccess marks the last notification as delivered; the marker
// fades after successDisplay.
func (r *Reporter) ReportSuccess() { r.set(StatusSuccess) }

// ReportFailure marks the last notification as failed until the next send.
func (r *Reporter) ReportFailure() { r.set(StatusFailed) }
