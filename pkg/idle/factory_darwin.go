//go:build darwin
// +build darwin

package idle

import (
	"github.com/Veraticus/idlewatch/pkg/interfaces"
)

// newPlatformSource uses the HID idle counter, falling back to tmux.
func newPlatformSource() interfaces.ActivitySource {
	if ioreg := NewIoregSource(); ioreg.IsAvailable() {
		return ioreg
	}

	if tmux := NewTmuxSource(""); tmux.IsAvailable() {
		return tmux
	}

	return nil
}
