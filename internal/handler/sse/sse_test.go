package sse

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
)

func TestWriter_WriteEvent(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(rec, rec)

	if err := w.WriteEvent(agent.Event{Type: agent.EventToolStart, Data: agent.ToolStartEvent{Tool: "query_database"}}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if err := w.WriteKeepAlive(); err != nil {
		t.Fatalf("WriteKeepAlive: %v", err)
	}

	want := "event: tool_start\ndata: {\"tool\":\"query_database\"}\n\n: keepalive\n\n"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if !rec.Flushed {
		t.Error("writer did not flush")
	}
}

// Concurrent events and keep-alives must never interleave inside a frame.
func TestWriter_FramesDoNotInterleave(t *testing.T) {
	var buf strings.Builder
	var mu sync.Mutex
	w := NewWriter(writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return buf.Write(p)
	}), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = w.WriteEvent(agent.Event{Type: agent.EventTextDelta, Data: agent.TextDeltaEvent{Text: "x"}})
		}()
		go func() {
			defer wg.Done()
			_ = w.WriteKeepAlive()
		}()
	}
	wg.Wait()

	for _, frame := range strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n") {
		if frame != ": keepalive" && frame != "event: text_delta\ndata: {\"text\":\"x\"}" {
			t.Fatalf("corrupt frame %q", frame)
		}
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

type countingKeepAlive struct {
	n    atomic.Int32
	fail int32
}

func (c *countingKeepAlive) WriteKeepAlive() error {
	if c.n.Add(1) >= c.fail {
		return errors.New("connection closed")
	}
	return nil
}

func TestTickerKeepAlive_StopsOnWriteError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	writer := &countingKeepAlive{fail: 3}
	k := NewTickerKeepAlive(time.Millisecond)

	select {
	case <-k.Start(writer, logger):
	case <-time.After(2 * time.Second):
		t.Fatal("keep-alive did not stop after write error")
	}
	if writer.n.Load() != 3 {
		t.Errorf("writes = %d, want 3", writer.n.Load())
	}
	k.Stop()
	k.Stop()
}

func TestTickerKeepAlive_Stop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	k := NewTickerKeepAlive(time.Hour)
	stopped := k.Start(&countingKeepAlive{fail: 100}, logger)
	k.Stop()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not end the keep-alive")
	}
}
