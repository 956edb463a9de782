// Package process runs a command under a pseudo-terminal and reports the
// user's keystrokes as activity.
package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Veraticus/idlewatch/pkg/interfaces"
)

// wrappedEnv marks children so idlewatch does not wrap itself.
const wrappedEnv = "IDLEWATCH_WRAPPED"

// Manager manages the wrapped process
type Manager struct {
	ptyManager PTY
	recorder   interfaces.ActivityRecorder
	onOutput   func([]byte)
	logger     *slog.Logger
	stdin      io.Reader
	stdout     io.Writer

	exitCode int
	mu       sync.Mutex
	sigChan  chan os.Signal
	done     chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithOutputObserver is called with every chunk the child writes.
func WithOutputObserver(fn func([]byte)) Option {
	return func(m *Manager) { m.onOutput = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithStdio replaces os.Stdin and os.Stdout.
func WithStdio(stdin io.Reader, stdout io.Writer) Option {
	return func(m *Manager) {
		m.stdin = stdin
		m.stdout = stdout
	}
}

// NewManager creates a process manager that reports stdin reads to recorder.
func NewManager(recorder interfaces.ActivityRecorder, opts ...Option) *Manager {
	m := &Manager{
		recorder: recorder,
		logger:   slog.Default(),
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ptyManager = NewPTYManager(m.logger)
	return m
}

// Start starts the command
func (m *Manager) Start(command string, args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if os.Getenv(wrappedEnv) == "1" {
		return fmt.Errorf("already wrapped by idlewatch")
	}

	env := append(os.Environ(), wrappedEnv+"=1")

	if err := m.ptyManager.Start(command, args, env); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}
	m.logger.Debug("started wrapped command", "command", command, "args", args)

	var onInput func()
	if m.recorder != nil {
		onInput = m.recorder.RecordActivity
	}

	go func() {
		if err := m.ptyManager.CopyIO(m.stdin, m.stdout, onInput, m.onOutput); err != nil {
			m.logger.Warn("I/O error", "error", err)
		}
	}()

	m.setupSignalForwarding()

	return nil
}

// Wait waits for the process to exit. A non-zero exit status is not an
// error; read it with ExitCode.
func (m *Manager) Wait() error {
	if m.ptyManager == nil {
		return fmt.Errorf("process not started")
	}

	err := m.ptyManager.Wait()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = nil
	}

	m.mu.Lock()
	if state := m.ptyManager.ProcessState(); state != nil {
		m.exitCode = state.ExitCode()
	}
	m.mu.Unlock()

	_ = m.ptyManager.Stop()

	close(m.done)
	m.cleanupSignals()

	return err
}

// ExitCode returns the exit code of the process
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// setupSignalForwarding relays termination and user signals to the child.
// SIGWINCH is handled by the PTY resize loop.
func (m *Manager) setupSignalForwarding() {
	m.sigChan = make(chan os.Signal, 1)
	signal.Notify(m.sigChan,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGQUIT,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	)

	go m.forwardSignals()
}

func (m *Manager) forwardSignals() {
	for {
		select {
		case sig, ok := <-m.sigChan:
			if !ok {
				return
			}
			if proc := m.ptyManager.Process(); proc != nil {
				if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
					m.logger.Warn("signal forward error", "signal", sig, "error", err)
				}
			}
		case <-m.done:
			return
		}
	}
}

func (m *Manager) cleanupSignals() {
	if m.sigChan != nil {
		signal.Stop(m.sigChan)
	}
}

// Stop restores the terminal and asks the child to terminate, killing it if
// the signal cannot be delivered.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ptyManager == nil {
		return nil
	}
	_ = m.ptyManager.Stop()

	if proc := m.ptyManager.Process(); proc != nil {
		if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return proc.Kill()
		}
	}

	return nil
}
