package status

import (
	"testing"
)

func TestClearDetector(t *testing.T) {
	tests := []struct {
		name           string
		input          [][]byte // Multiple chunks to test buffering
		expectedClears int
	}{
		{
			name:           "single clear screen sequence",
			input:          [][]byte{[]byte("hello\033[2Jworld")},
			expectedClears: 1,
		},
		{
			name:           "multiple clear sequences",
			input:          [][]byte{[]byte("\033[2J\033[3J\033[H")},
			expectedClears: 1, // Only triggers once per chunk
		},
		{
			name:           "clear sequence split across chunks",
			input:          [][]byte{[]byte("text\033[2"), []byte("Jmore text")},
			expectedClears: 1,
		},
		{
			name:           "reset terminal sequence",
			input:          [][]byte{[]byte("before\033cafter")},
			expectedClears: 1,
		},
		{
			name:           "alternate screen enter and leave",
			input:          [][]byte{[]byte("\033[?1049h"), []byte("vim"), []byte("\033[?10"), []byte("49l")},
			expectedClears: 2,
		},
		{
			name:           "no clear sequences",
			input:          [][]byte{[]byte("normal text output")},
			expectedClears: 0,
		},
		{
			name:           "cursor home alone is not a clear",
			input:          [][]byte{[]byte("\033[H")},
			expectedClears: 0,
		},
		{
			name: "matched sequence is not reported again",
			input: [][]byte{
				[]byte("\033[2J"),
				[]byte("x"),
				[]byte("y"),
			},
			expectedClears: 1,
		},
		{
			name:           "empty chunks",
			input:          [][]byte{nil, {}},
			expectedClears: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clears := 0
			detector := NewClearDetector(func() { clears++ })

			for _, chunk := range tt.input {
				detector.Observe(chunk)
			}

			if clears != tt.expectedClears {
				t.Errorf("expected %d clears, got %d", tt.expectedClears, clears)
			}
		})
	}
}

func TestClearDetector_BoundedTail(t *testing.T) {
	detector := NewClearDetector(nil)
	for i := 0; i < 1000; i++ {
		detector.Observe([]byte("some ordinary output line\n"))
	}
	if len(detector.tail) >= maxSequenceLen {
		t.Errorf("tail grew to %d bytes", len(detector.tail))
	}
}
