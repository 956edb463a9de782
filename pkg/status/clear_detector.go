package status

import "bytes"

// Escape sequences that wipe the status line along with the screen.
var screenClearSequences = [][]byte{
	[]byte("\033[2J"), // Clear entire screen
	[]byte("\033[3J"), // Clear screen and scrollback
	[]byte("\033[0J"), // Clear cursor to end of screen
	[]byte("\033[J"),  // Same, parameter omitted
	[]byte("\033c"),   // Reset terminal
	[]byte("\033[?1049h"),
	[]byte("\033[?1049l"),
}

// maxSequenceLen is the longest entry in screenClearSequences.
const maxSequenceLen = 8

// ClearDetector watches a wrapped command's output for screen clears and
// alternate-screen switches. Sequences split across writes are still seen.
// It is not safe for concurrent use; feed it from the output copy loop.
type ClearDetector struct {
	onClear func()
	tail    []byte
}

// NewClearDetector calls onClear once for every chunk of output that
// contains at least one clear.
func NewClearDetector(onClear func()) *ClearDetector {
	return &ClearDetector{
		onClear: onClear,
		tail:    make([]byte, 0, 2*maxSequenceLen),
	}
}

// Observe scans the next chunk of output.
func (d *ClearDetector) Observe(data []byte) {
	if len(data) == 0 {
		return
	}

	buf := append(d.tail, data...)
	end := -1
	for _, seq := range screenClearSequences {
		if i := bytes.LastIndex(buf, seq); i >= 0 && i+len(seq) > end {
			end = i + len(seq)
		}
	}

	// Carry over only bytes that could start an unfinished sequence, and
	// never bytes that already matched.
	keepFrom := max(len(buf)-(maxSequenceLen-1), end, 0)
	d.tail = append(d.tail[:0], buf[keepFrom:]...)

	if end >= 0 && d.onClear != nil {
		d.onClear()
	}
}
