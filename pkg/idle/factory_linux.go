//go:build linux
// +build linux

package idle

import (
	"github.com/Veraticus/idlewatch/pkg/interfaces"
)

// newPlatformSource prefers tmux client activity, then the desktop session bus.
func newPlatformSource() interfaces.ActivitySource {
	if tmux := NewTmuxSource(""); tmux.IsAvailable() {
		return tmux
	}

	if bus, err := NewDBusSource(); err == nil {
		if bus.IsAvailable() {
			return bus
		}
		_ = bus.Close()
	}

	return nil
}
