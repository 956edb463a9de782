package notification

import (
	"os"
	"path/filepath"
	"strings"
)

// ContextNotifier wraps another notifier and says where the notification
// came from: the host, the working directory, and an optional label such as
// the tmux session name.
type ContextNotifier struct {
	underlying  Notifier
	hostname    string
	cwdBasename string
	label       func() string
}

// NewContextNotifier creates a new context notifier. label may be nil.
func NewContextNotifier(underlying Notifier, label func() string) *ContextNotifier {
	cn := &ContextNotifier{
		underlying: underlying,
		label:      label,
	}
	if host, err := os.Hostname(); err == nil {
		cn.hostname = shortHost(host)
	}
	if cwd, err := os.Getwd(); err == nil {
		cn.cwdBasename = filepath.Base(cwd)
	}
	return cn
}

// Send implements the Notifier interface
func (cn *ContextNotifier) Send(notification Notification) error {
	if ctx := cn.context(); ctx != "" {
		notification.Title = notification.Title + " [" + ctx + "]"
	}
	return cn.underlying.Send(notification)
}

// context renders "host:dir - label", leaving out empty parts.
func (cn *ContextNotifier) context() string {
	where := cn.hostname
	if cn.cwdBasename != "" {
		if where != "" {
			where += ":"
		}
		where += cn.cwdBasename
	}

	if cn.label != nil {
		if l := strings.TrimSpace(cn.label()); l != "" {
			if where != "" {
				return where + " - " + l
			}
			return l
		}
	}
	return where
}

func shortHost(host string) string {
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}
