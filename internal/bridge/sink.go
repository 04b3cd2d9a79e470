package bridge

import (
	"io"
	"sync"
)

// Sink receives diagnostic records relayed from rendered previews. Each
// Append call is one complete record, newline terminated.
type Sink interface {
	Append(record string) error
}

// ConsoleSink appends records to a writer, the host's debug console.
// Records from concurrent connections never interleave.
type ConsoleSink struct {
	w  io.Writer
	mu sync.Mutex
}

// NewConsoleSink creates a sink writing to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Append writes record to the console.
func (s *ConsoleSink) Append(record string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, record)
	return err
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(record string) error

// Append calls f(record).
func (f SinkFunc) Append(record string) error {
	return f(record)
}
