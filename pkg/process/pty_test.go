package process

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/idlewatch/pkg/log"
)

func skipWithoutPTY(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" || os.Getenv("CI") == "true" {
		t.Skip("PTY tests require Unix environment")
	}
}

func TestPTYManager_StartAndWait(t *testing.T) {
	skipWithoutPTY(t)

	ptyMgr := NewPTYManager(log.Discard())

	if err := ptyMgr.Start("echo", []string{"hello world"}, os.Environ()); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if ptyMgr.GetPTY() == nil {
		t.Fatal("PTY is nil")
	}
	if err := ptyMgr.Start("echo", nil, nil); err == nil {
		t.Error("expected error starting twice")
	}

	if err := ptyMgr.Wait(); err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if ptyMgr.ProcessState() == nil {
		t.Error("ProcessState is nil")
	}
}

func TestPTYManager_WaitNotStarted(t *testing.T) {
	if err := NewPTYManager(nil).Wait(); err == nil {
		t.Error("expected error")
	}
}

func TestPTYManager_CopyIONotStarted(t *testing.T) {
	err := NewPTYManager(nil).CopyIO(strings.NewReader(""), io.Discard, nil, nil)
	if err == nil {
		t.Error("expected error")
	}
}

// lockedBuffer is written by CopyIO and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPTYManager_CopyIO(t *testing.T) {
	skipWithoutPTY(t)

	ptyMgr := NewPTYManager(log.Discard())

	// head exits after echoing one line, which ends the output copy.
	if err := ptyMgr.Start("head", []string{"-n", "1"}, os.Environ()); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	output := &lockedBuffer{}
	var mu sync.Mutex
	inputs, outputs := 0, 0

	done := make(chan error, 1)
	go func() {
		done <- ptyMgr.CopyIO(strings.NewReader("test input\n"), output,
			func() { mu.Lock(); inputs++; mu.Unlock() },
			func([]byte) { mu.Lock(); outputs++; mu.Unlock() })
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("CopyIO() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		_ = ptyMgr.Process().Kill()
		t.Fatal("CopyIO did not complete in time")
	}
	_ = ptyMgr.Wait()

	if !strings.Contains(output.String(), "test input") {
		t.Errorf("output = %q, want echoed input", output.String())
	}
	mu.Lock()
	defer mu.Unlock()
	if inputs == 0 {
		t.Error("input hook was not called")
	}
	if outputs == 0 {
		t.Error("output hook was not called")
	}
}

func TestInputReader(t *testing.T) {
	calls := 0
	r := &inputReader{reader: strings.NewReader("abc"), onInput: func() { calls++ }}

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("read %q", data)
	}
	// The final zero-byte EOF read must not count.
	if calls != 1 {
		t.Errorf("onInput called %d times, want 1", calls)
	}
}

func TestOutputReader(t *testing.T) {
	var seen bytes.Buffer
	r := &outputReader{reader: strings.NewReader("line one\nline two\n"), onOutput: func(b []byte) { seen.Write(b) }}

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if seen.String() != string(data) {
		t.Errorf("observer saw %q, reader returned %q", seen.String(), data)
	}
}
