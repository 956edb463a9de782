package idle

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IoregSource reads the macOS HID idle counter through ioreg.
type IoregSource struct {
	cmdExecutor func(name string, args ...string) ([]byte, error)
}

// NewIoregSource creates an ioreg-backed activity source.
func NewIoregSource() *IoregSource {
	return &IoregSource{
		cmdExecutor: defaultCmdExecutor,
	}
}

// IdleTime returns the time since the last keyboard or mouse event.
func (s *IoregSource) IdleTime() (time.Duration, error) {
	output, err := s.cmdExecutor("ioreg", "-c", "IOHIDSystem", "-d", "4")
	if err != nil {
		return 0, fmt.Errorf("failed to execute ioreg: %w", err)
	}

	nanos, err := parseHIDIdleTime(output)
	if err != nil {
		return 0, fmt.Errorf("failed to parse HIDIdleTime: %w", err)
	}

	return time.Duration(nanos), nil
}

// String names the source in logs.
func (s *IoregSource) String() string {
	return "ioreg"
}

// IsAvailable checks if ioreg is on PATH.
func (s *IoregSource) IsAvailable() bool {
	_, err := s.cmdExecutor("which", "ioreg")
	return err == nil
}

// parseHIDIdleTime extracts the nanosecond counter from a line such as
//
//	"HIDIdleTime" = 123456789
func parseHIDIdleTime(output []byte) (int64, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.Contains(line, "HIDIdleTime") {
			continue
		}

		parts := strings.Split(line, "=")
		if len(parts) != 2 {
			continue
		}

		valueStr := strings.TrimSpace(strings.Trim(strings.TrimSpace(parts[1]), "\""))
		value, err := strconv.ParseInt(valueStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse idle time value: %w", err)
		}

		return value, nil
	}

	return 0, fmt.Errorf("HIDIdleTime not found in ioreg output")
}
