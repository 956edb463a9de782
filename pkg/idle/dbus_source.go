package idle

import (
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

// D-Bus endpoints that expose the desktop session's idle counter.
const (
	mutterDest   = "org.gnome.Mutter.IdleMonitor"
	mutterPath   = dbus.ObjectPath("/org/gnome/Mutter/IdleMonitor/Core")
	mutterMethod = "org.gnome.Mutter.IdleMonitor.GetIdletime"

	screenSaverDest   = "org.freedesktop.ScreenSaver"
	screenSaverPath   = dbus.ObjectPath("/org/freedesktop/ScreenSaver")
	screenSaverMethod = "org.freedesktop.ScreenSaver.GetSessionIdleTime"
)

// DBusSource queries the desktop session over the D-Bus session bus. GNOME's
// Mutter idle monitor is tried first (milliseconds), then the freedesktop
// ScreenSaver interface (seconds).
type DBusSource struct {
	conn *dbus.Conn
	call func(dest string, path dbus.ObjectPath, method string, out any) error
}

// NewDBusSource connects to the session bus.
func NewDBusSource() (*DBusSource, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	s := &DBusSource{conn: conn}
	s.call = s.busCall
	return s, nil
}

func (s *DBusSource) busCall(dest string, path dbus.ObjectPath, method string, out any) error {
	return s.conn.Object(dest, path).Call(method, 0).Store(out)
}

// IdleTime returns the session idle time reported by the desktop.
func (s *DBusSource) IdleTime() (time.Duration, error) {
	var ms uint64
	mutterErr := s.call(mutterDest, mutterPath, mutterMethod, &ms)
	if mutterErr == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}

	var secs uint32
	ssErr := s.call(screenSaverDest, screenSaverPath, screenSaverMethod, &secs)
	if ssErr == nil {
		return time.Duration(secs) * time.Second, nil
	}

	return 0, fmt.Errorf("no idle monitor on session bus: %w", errors.Join(mutterErr, ssErr))
}

// IsAvailable probes the bus once.
func (s *DBusSource) IsAvailable() bool {
	_, err := s.IdleTime()
	return err == nil
}

// String names the source in logs.
func (s *DBusSource) String() string {
	return "dbus"
}

// Close releases the bus connection.
func (s *DBusSource) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
