package hal

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Logf formats one line into l. A nil Logger drops the line.
func Logf(l Logger, format string, args ...any) {
	if l == nil {
		return
	}
	l.WriteLineString(fmt.Sprintf(format, args...))
}

// WriterLogger writes lines to an io.Writer, e.g. the host console.
type WriterLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterLogger(w io.Writer) *WriterLogger {
	return &WriterLogger{w: w}
}

func (l *WriterLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, s)
	io.WriteString(l.w, "\n")
}

// MemLogger keeps every line in memory.
type MemLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *MemLogger) WriteLineString(s string) {
	l.mu.Lock()
	l.lines = append(l.lines, s)
	l.mu.Unlock()
}

// Lines returns a copy of the recorded lines.
func (l *MemLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// Count returns how many lines contain substr.
func (l *MemLogger) Count(substr string) int {
	n := 0
	for _, line := range l.Lines() {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}
