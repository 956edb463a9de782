package process

import (
	"io"
	"os"
)

// PTY defines the interface for PTY operations
type PTY interface {
	Start(command string, args []string, env []string) error
	Wait() error
	ProcessState() *os.ProcessState
	Process() *os.Process
	CopyIO(stdin io.Reader, stdout io.Writer, onInput func(), onOutput func([]byte)) error
	Stop() error
}
