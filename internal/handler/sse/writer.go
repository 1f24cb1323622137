package sse

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
)

// Writer serializes events and keep-alive comments onto one response.
// Both go through the same mutex so frames never interleave.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

// NewWriter creates a Writer. flusher may be nil.
func NewWriter(w io.Writer, flusher http.Flusher) *Writer {
	return &Writer{w: w, flusher: flusher}
}

// WriteEvent writes one "event:/data:" frame and flushes it.
func (s *Writer) WriteEvent(ev agent.Event) error {
	frame, err := agent.FormatSSE(ev.Type, ev.Data)
	if err != nil {
		return err
	}
	return s.write(frame)
}

// WriteKeepAlive writes an SSE comment line, ignored by clients.
func (s *Writer) WriteKeepAlive() error {
	return s.write(": keepalive\n\n")
}

func (s *Writer) write(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.w, frame); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
