package pending

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/tools"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingExecutor records every call it runs.
type countingExecutor struct {
	calls atomic.Int32
	mu    sync.Mutex
	args  []json.RawMessage
	fail  *domain.ToolError
}

func (e *countingExecutor) Execute(_ context.Context, call agent.ToolCall) (tools.ToolResult, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.args = append(e.args, call.Arguments)
	e.mu.Unlock()

	if e.fail != nil {
		return tools.ToolResult{ID: call.ID, Name: call.Name, Error: e.fail, IsError: true}, nil
	}
	return tools.ToolResult{ID: call.ID, Name: call.Name, Result: map[string]bool{"success": true}}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAction() *agent.PendingAction {
	return &agent.PendingAction{
		ToolName:  "update_invoice_status",
		Arguments: json.RawMessage(`{"doc_id":"123","status":"paid"}`),
		Resume:    agent.ResumeContext{ConversationID: "conv-1", ToolCallID: "call_1"},
	}
}

func TestMemoryStore_CreateAssignsUniqueIDs(t *testing.T) {
	store := NewMemoryStore(0, nil)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := store.Create(context.Background(), newAction())
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if len(id) != 36 || seen[id] {
			t.Fatalf("bad or duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(5*time.Minute, clock.Now)
	ctx := context.Background()

	fresh, _ := store.Create(ctx, newAction())
	stale, _ := store.Create(ctx, newAction())

	clock.Advance(5*time.Minute - time.Second)
	if _, err := store.Take(ctx, fresh); err != nil {
		t.Fatalf("Take before TTL: %v", err)
	}

	clock.Advance(time.Second)
	if _, err := store.Take(ctx, stale); !errors.Is(err, domain.ErrActionExpired) {
		t.Fatalf("Take at TTL = %v, want ErrActionExpired", err)
	}
	if store.Len() != 0 {
		t.Errorf("expired action not removed on lookup")
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	store := NewMemoryStore(time.Minute, clock.Now)
	ctx := context.Background()

	_, _ = store.Create(ctx, newAction())
	clock.Advance(30 * time.Second)
	keep, _ := store.Create(ctx, newAction())

	n, err := store.Sweep(ctx, clock.Now().Add(40*time.Second))
	if err != nil || n != 1 {
		t.Fatalf("Sweep = %d, %v", n, err)
	}
	if _, err := store.Take(ctx, keep); err != nil {
		t.Errorf("unexpired action swept: %v", err)
	}
}

func TestResolver_ConcurrentResolveExecutesOnce(t *testing.T) {
	store := NewMemoryStore(0, nil)
	exec := &countingExecutor{}
	resolver := NewResolver(store, exec, testLogger())

	id, _ := store.Create(context.Background(), newAction())

	const workers = 50
	var wg sync.WaitGroup
	var succeeded, expired atomic.Int32
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := resolver.Resolve(context.Background(), id, true, nil)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrActionExpired):
				expired.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if succeeded.Load() != 1 || expired.Load() != workers-1 {
		t.Errorf("succeeded=%d expired=%d", succeeded.Load(), expired.Load())
	}
	if exec.calls.Load() != 1 {
		t.Errorf("executor ran %d times", exec.calls.Load())
	}
}

func TestResolver_RejectDoesNotExecute(t *testing.T) {
	store := NewMemoryStore(0, nil)
	exec := &countingExecutor{}
	resolver := NewResolver(store, exec, testLogger())

	id, _ := store.Create(context.Background(), newAction())
	outcome, err := resolver.Resolve(context.Background(), id, false, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if outcome.Confirmed || outcome.Result != nil || outcome.ToolName != "update_invoice_status" {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if exec.calls.Load() != 0 {
		t.Error("rejected action was executed")
	}

	// Rejection consumes the action
	if _, err := resolver.Resolve(context.Background(), id, true, nil); !errors.Is(err, domain.ErrActionExpired) {
		t.Errorf("second resolve = %v", err)
	}
}

func TestResolver_ExpiredNeverExecutes(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	store := NewMemoryStore(time.Minute, clock.Now)
	exec := &countingExecutor{}
	resolver := NewResolver(store, exec, testLogger())

	id, _ := store.Create(context.Background(), newAction())
	clock.Advance(2 * time.Minute)

	if _, err := resolver.Resolve(context.Background(), id, true, nil); !errors.Is(err, domain.ErrActionExpired) {
		t.Fatalf("Resolve = %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), "no-such-id", true, nil); !errors.Is(err, domain.ErrActionExpired) {
		t.Fatalf("Resolve unknown = %v", err)
	}
	if exec.calls.Load() != 0 {
		t.Error("expired action was executed")
	}
}

func TestResolver_OverridesWin(t *testing.T) {
	store := NewMemoryStore(0, nil)
	exec := &countingExecutor{}
	resolver := NewResolver(store, exec, testLogger())

	id, _ := store.Create(context.Background(), newAction())
	_, err := resolver.Resolve(context.Background(), id, true, map[string]interface{}{"status": "cancelled"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(exec.args[0], &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "cancelled" || got["doc_id"] != "123" {
		t.Errorf("merged args = %v", got)
	}
}

func TestResolver_ToolErrorConsumesAction(t *testing.T) {
	store := NewMemoryStore(0, nil)
	exec := &countingExecutor{fail: domain.NewToolError(domain.ToolErrExecutor, "holded down")}
	resolver := NewResolver(store, exec, testLogger())

	id, _ := store.Create(context.Background(), newAction())
	outcome, err := resolver.Resolve(context.Background(), id, true, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if outcome.ToolErr == nil {
		t.Fatal("expected tool error in outcome")
	}
	if content := OutcomeContent(outcome); content != `{"error":{"code":"executor_error","message":"holded down"}}` {
		t.Errorf("content = %s", content)
	}
	if store.Len() != 0 {
		t.Error("failed action left in store")
	}
}

func TestMergeArguments(t *testing.T) {
	out, err := MergeArguments(json.RawMessage(`{"a":1,"b":2}`), map[string]interface{}{"b": 3, "c": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"a":1,"b":3,"c":"x"}` {
		t.Errorf("got %s", out)
	}

	same, _ := MergeArguments(json.RawMessage(`{"a":1}`), nil)
	if string(same) != `{"a":1}` {
		t.Errorf("no-op merge changed args: %s", same)
	}

	if _, err := MergeArguments(json.RawMessage(`[1]`), map[string]interface{}{"a": 1}); err == nil {
		t.Error("expected error for non-object arguments")
	}
}
