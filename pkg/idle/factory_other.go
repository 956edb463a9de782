//go:build !linux && !darwin
// +build !linux,!darwin

package idle

import (
	"github.com/Veraticus/idlewatch/pkg/interfaces"
)

// newPlatformSource only knows about tmux on other platforms.
func newPlatformSource() interfaces.ActivitySource {
	if tmux := NewTmuxSource(""); tmux.IsAvailable() {
		return tmux
	}
	return nil
}
