package idle

import (
	"fmt"

	"github.com/Veraticus/idlewatch/pkg/config"
	"github.com/Veraticus/idlewatch/pkg/interfaces"
)

// NewSource builds the activity source named by one of the config.Source*
// constants. "auto" picks the best source for the platform and may return
// nil when none is available; "none" always returns nil. Explicitly named
// sources fail if unusable.
func NewSource(name string) (interfaces.ActivitySource, error) {
	switch name {
	case config.SourceAuto, "":
		return newPlatformSource(), nil
	case config.SourceNone:
		return nil, nil
	case config.SourceTmux:
		s := NewTmuxSource("")
		if !s.IsAvailable() {
			return nil, fmt.Errorf("tmux source unavailable: not inside a tmux session")
		}
		return s, nil
	case config.SourceIoreg:
		s := NewIoregSource()
		if !s.IsAvailable() {
			return nil, fmt.Errorf("ioreg source unavailable: ioreg not found")
		}
		return s, nil
	case config.SourceDBus:
		s, err := NewDBusSource()
		if err != nil {
			return nil, err
		}
		if !s.IsAvailable() {
			_ = s.Close()
			return nil, fmt.Errorf("dbus source unavailable: no idle monitor on the session bus")
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown activity source %q", name)
	}
}
