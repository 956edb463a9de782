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

	"github.com/creack/pty"
	"golang.org/x/term"
)

// PTYManager handles PTY-based process execution
type PTYManager struct {
	cmd         *exec.Cmd
	pty         *os.File
	mu          sync.Mutex
	stopChan    chan struct{}
	wg          sync.WaitGroup
	restoreFunc func()
	logger      *slog.Logger
}

// Ensure PTYManager implements PTY
var _ PTY = (*PTYManager)(nil)

// NewPTYManager creates a new PTY manager
func NewPTYManager(logger *slog.Logger) *PTYManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PTYManager{
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// Start starts a process with PTY
func (p *PTYManager) Start(command string, args []string, env []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("process already started")
	}

	p.cmd = exec.Command(command, args...)
	p.cmd.Env = env

	var err error
	p.pty, err = pty.Start(p.cmd)
	if err != nil {
		p.cmd = nil
		return fmt.Errorf("failed to start PTY: %w", err)
	}

	// Not fatal: stdin may not be a terminal.
	if err := pty.InheritSize(os.Stdin, p.pty); err != nil {
		p.logger.Debug("failed to copy terminal size", "error", err)
	}

	p.wg.Add(1)
	go p.monitorTerminalSize()

	return nil
}

// GetPTY returns the PTY file descriptor
func (p *PTYManager) GetPTY() *os.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pty
}

// Wait waits for the process to complete
func (p *PTYManager) Wait() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil {
		return fmt.Errorf("process not started")
	}

	err := cmd.Wait()

	close(p.stopChan)
	p.wg.Wait()

	p.mu.Lock()
	if p.pty != nil {
		_ = p.pty.Close()
	}
	p.mu.Unlock()

	return err
}

// ProcessState returns the process state
func (p *PTYManager) ProcessState() *os.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.ProcessState
}

// Process returns the underlying process
func (p *PTYManager) Process() *os.Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Process
}

// Stop restores the terminal state. It is safe to call more than once.
func (p *PTYManager) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.restoreFunc != nil {
		p.restoreFunc()
		p.restoreFunc = nil
	}

	return nil
}

// monitorTerminalSize resizes the PTY on SIGWINCH
func (p *PTYManager) monitorTerminalSize() {
	defer p.wg.Done()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGWINCH)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-sigChan:
			p.mu.Lock()
			if p.pty != nil {
				if err := pty.InheritSize(os.Stdin, p.pty); err != nil {
					p.logger.Debug("failed to resize PTY", "error", err)
				}
			}
			p.mu.Unlock()
		case <-p.stopChan:
			return
		}
	}
}

// CopyIO puts a terminal stdin into raw mode and pumps data both ways.
// onInput runs for every chunk read from stdin and onOutput for every chunk
// the child writes; either may be nil. It returns when the child's output
// ends. The stdin pump stops at its next read once the PTY is closed.
func (p *PTYManager) CopyIO(stdin io.Reader, stdout io.Writer, onInput func(), onOutput func([]byte)) error {
	p.mu.Lock()
	if p.pty == nil {
		p.mu.Unlock()
		return fmt.Errorf("PTY not initialized")
	}
	ptyFile := p.pty
	p.mu.Unlock()

	if file, ok := stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fd := int(file.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			p.logger.Debug("failed to set raw mode", "error", err)
		} else {
			p.mu.Lock()
			p.restoreFunc = func() { _ = term.Restore(fd, state) }
			p.mu.Unlock()
			defer func() { _ = p.Stop() }()
		}
	}

	go func() {
		if _, err := io.Copy(ptyFile, &inputReader{reader: stdin, onInput: onInput}); err != nil {
			p.logger.Debug("stdin copy ended", "error", err)
		}
	}()

	_, err := io.Copy(stdout, &outputReader{reader: ptyFile, onOutput: onOutput})
	// Linux reports EIO once the child side of the PTY is gone.
	if err != nil && !errors.Is(err, syscall.EIO) && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("stdout copy error: %w", err)
	}
	return nil
}

// inputReader reports every non-empty read as user activity.
type inputReader struct {
	reader  io.Reader
	onInput func()
}

func (r *inputReader) Read(b []byte) (int, error) {
	n, err := r.reader.Read(b)
	if n > 0 && r.onInput != nil {
		r.onInput()
	}
	return n, err
}

// outputReader hands each chunk of child output to onOutput.
type outputReader struct {
	reader   io.Reader
	onOutput func([]byte)
}

func (r *outputReader) Read(b []byte) (int, error) {
	n, err := r.reader.Read(b)
	if n > 0 && r.onOutput != nil {
		r.onOutput(b[:n])
	}
	return n, err
}
