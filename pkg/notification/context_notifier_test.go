package notification

import (
	"testing"
)

func TestContextNotifier(t *testing.T) {
	tests := []struct {
		name          string
		hostname      string
		cwdBasename   string
		label         func() string
		expectedTitle string
	}{
		{
			name:          "host, directory and label",
			hostname:      "laptop",
			cwdBasename:   "project",
			label:         func() string { return "work" },
			expectedTitle: "idlewatch: idle [laptop:project - work]",
		},
		{
			name:          "no label func",
			hostname:      "laptop",
			cwdBasename:   "project",
			expectedTitle: "idlewatch: idle [laptop:project]",
		},
		{
			name:          "blank label ignored",
			hostname:      "laptop",
			cwdBasename:   "project",
			label:         func() string { return "  " },
			expectedTitle: "idlewatch: idle [laptop:project]",
		},
		{
			name:          "label only",
			label:         func() string { return "work" },
			expectedTitle: "idlewatch: idle [work]",
		},
		{
			name:          "no context leaves title alone",
			expectedTitle: "idlewatch: idle",
		},
		{
			name:          "directory without host",
			cwdBasename:   "project",
			expectedTitle: "idlewatch: idle [project]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent Notification
			cn := &ContextNotifier{
				underlying: &mockNotifier{sendFunc: func(n Notification) error {
					sent = n
					return nil
				}},
				hostname:    tt.hostname,
				cwdBasename: tt.cwdBasename,
				label:       tt.label,
			}

			err := cn.Send(Notification{Title: "idlewatch: idle", Message: "No activity for 5m0s"})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if sent.Title != tt.expectedTitle {
				t.Errorf("Title = %q, want %q", sent.Title, tt.expectedTitle)
			}
			if sent.Message != "No activity for 5m0s" {
				t.Errorf("Message changed to %q", sent.Message)
			}
		})
	}
}

func TestNewContextNotifier(t *testing.T) {
	cn := NewContextNotifier(&mockNotifier{}, nil)

	// Tests run inside the package directory.
	if cn.cwdBasename != "notification" {
		t.Errorf("cwdBasename = %q, want notification", cn.cwdBasename)
	}

	var _ Notifier = cn
}

func TestShortHost(t *testing.T) {
	tests := map[string]string{
		"laptop":             "laptop",
		"laptop.example.com": "laptop",
		".hidden":            ".hidden",
		"":                   "",
	}
	for in, want := range tests {
		if got := shortHost(in); got != want {
			t.Errorf("shortHost(%q) = %q, want %q", in, got, want)
		}
	}
}

// mockNotifier for testing
type mockNotifier struct {
	sendFunc func(Notification) error
}

func (m *mockNotifier) Send(n Notification) error {
	if m.sendFunc != nil {
		return m.sendFunc(n)
	}
	return nil
}
