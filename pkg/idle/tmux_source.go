package idle

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// TmuxSource reports idle time from the most recently active client of a
// tmux session.
type TmuxSource struct {
	sessionName string
	cmdExecutor func(name string, args ...string) ([]byte, error)
	getenv      func(string) string
	now         func() time.Time
}

// NewTmuxSource creates a tmux activity source.
// If sessionName is empty, the current session is resolved on every sample.
func NewTmuxSource(sessionName string) *TmuxSource {
	return &TmuxSource{
		sessionName: sessionName,
		cmdExecutor: defaultCmdExecutor,
		getenv:      os.Getenv,
		now:         time.Now,
	}
}

// defaultCmdExecutor executes a command and returns its output.
func defaultCmdExecutor(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.Output()
}

// IdleTime returns how long ago the most recent tmux client saw input.
func (s *TmuxSource) IdleTime() (time.Duration, error) {
	if !s.isInTmux() {
		return 0, fmt.Errorf("not in a tmux session")
	}

	sessionName := s.sessionName
	if sessionName == "" {
		name, err := s.currentSessionName()
		if err != nil {
			return 0, fmt.Errorf("failed to get current session name: %w", err)
		}
		sessionName = name
	}

	idleTime, err := s.sessionIdleTime(sessionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get session idle time: %w", err)
	}

	return idleTime, nil
}

// String names the source in logs.
func (s *TmuxSource) String() string {
	return "tmux"
}

func (s *TmuxSource) isInTmux() bool {
	return s.getenv("TMUX") != ""
}

func (s *TmuxSource) currentSessionName() (string, error) {
	output, err := s.cmdExecutor("tmux", "display-message", "-p", "#{session_name}")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(output)), nil
}

// sessionIdleTime returns the minimum idle time across all clients in a session.
func (s *TmuxSource) sessionIdleTime(sessionName string) (time.Duration, error) {
	output, err := s.cmdExecutor("tmux", "list-clients", "-t", sessionName, "-F", "#{client_activity}")
	if err != nil {
		return 0, err
	}

	var mostRecent time.Time
	for _, line := range bytes.Split(bytes.TrimSpace(output), []byte("\n")) {
		if len(line) == 0 {
			continue
		}

		// client_activity is seconds since epoch
		secs, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			continue
		}

		at := time.Unix(secs, 0)
		if mostRecent.IsZero() || at.After(mostRecent) {
			mostRecent = at
		}
	}

	if mostRecent.IsZero() {
		return 0, fmt.Errorf("no client activity found for session %s", sessionName)
	}

	idleTime := s.now().Sub(mostRecent)
	if idleTime < 0 {
		// Clock skew between tmux and us
		idleTime = 0
	}

	return idleTime, nil
}

// IsAvailable checks if tmux is installed and we're inside a session.
func (s *TmuxSource) IsAvailable() bool {
	if !s.isInTmux() {
		return false
	}

	_, err := s.cmdExecutor("tmux", "-V")
	return err == nil
}
