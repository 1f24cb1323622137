package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	agentsvc "github.com/miguelbenajes/HoldedConnector/internal/domain/services/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/handler/sse"
)

// fakeService replays a fixed event sequence and records calls.
type fakeService struct {
	events     []agent.Event
	streamErr  error
	confirmErr error
	removed    int64
	cleared    string
}

func (f *fakeService) StreamChat(ctx context.Context, req *agentsvc.ChatRequest) (*agentsvc.ChatStream, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan agent.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return &agentsvc.ChatStream{ConversationID: "c1", Events: ch}, nil
}

func (f *fakeService) Chat(ctx context.Context, req *agentsvc.ChatRequest) (*agentsvc.ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrValidation)
	}
	return &agentsvc.ChatResponse{Type: agentsvc.ResponseAssistant, Content: "hi", ConversationID: "c1"}, nil
}

func (f *fakeService) Confirm(ctx context.Context, req *agentsvc.ConfirmRequest) (*agentsvc.ChatResponse, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &agentsvc.ChatResponse{Type: agentsvc.ResponseAssistant, Content: "Done", ConversationID: "c1"}, nil
}

func (f *fakeService) GetHistory(ctx context.Context, id string) ([]agent.Turn, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: conversation_id is required", domain.ErrValidation)
	}
	return []agent.Turn{{ID: 1, ConversationID: id, Role: agent.RoleUser, Content: "hello"}}, nil
}

func (f *fakeService) ClearHistory(ctx context.Context, id string) error {
	f.cleared = id
	return nil
}

func (f *fakeService) ListConversations(ctx context.Context) ([]agent.ConversationSummary, error) {
	return []agent.ConversationSummary{{ConversationID: "c1", MessageCount: 2}}, nil
}

func (f *fakeService) ListFavorites(ctx context.Context) ([]agent.Favorite, error) {
	return []agent.Favorite{{ID: 1, Query: "q", Label: "q"}}, nil
}

func (f *fakeService) AddFavorite(ctx context.Context, req *agentsvc.AddFavoriteRequest) (*agent.Favorite, error) {
	return &agent.Favorite{ID: 7, Query: req.Query, Label: req.Label}, nil
}

func (f *fakeService) RemoveFavorite(ctx context.Context, id int64) error {
	if id == 404 {
		return domain.ErrNotFound
	}
	f.removed = id
	return nil
}

func (f *fakeService) Settings() *agentsvc.Settings {
	return &agentsvc.Settings{Model: "gpt-4o-mini", SafeMode: true, MaxRounds: 10, PendingTTLSeconds: 300}
}

func newTestServer(t *testing.T, svc *fakeService) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewAgentHandler(svc, &sse.Config{KeepAliveInterval: time.Hour}, logger)
	mux := http.NewServeMux()
	noLimit := func(next http.Handler) http.Handler { return next }
	RegisterRoutes(mux, h, NewHealthHandler(nil), NewUpgrader(nil), noLimit)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func streamEvents() []agent.Event {
	return []agent.Event{
		{Type: agent.EventToolStart, Data: agent.ToolStartEvent{Tool: "query_database"}},
		{Type: agent.EventTextDelta, Data: agent.TextDeltaEvent{Text: "Total: 10"}},
		{Type: agent.EventDone, Data: agent.DoneEvent{ConversationID: "c1"}},
	}
}

func TestStreamChat(t *testing.T) {
	srv := newTestServer(t, &fakeService{events: streamEvents()})

	resp := doJSON(t, "POST", srv.URL+"/api/ai/chat/stream", `{"message":"income?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	var types []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			types = append(types, name)
		}
	}
	want := []string{"tool_start", "text_delta", "done"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", types, want)
	}
}

func TestStreamChatValidation(t *testing.T) {
	srv := newTestServer(t, &fakeService{streamErr: fmt.Errorf("%w: message is required", domain.ErrValidation)})

	if resp := doJSON(t, "POST", srv.URL+"/api/ai/chat/stream", `{"message":""}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if resp := doJSON(t, "POST", srv.URL+"/api/ai/chat/stream", `not json`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", resp.StatusCode)
	}
}

func TestConfirmExpired(t *testing.T) {
	srv := newTestServer(t, &fakeService{confirmErr: domain.ErrActionExpired})

	resp := doJSON(t, "POST", srv.URL+"/api/ai/chat/confirm", `{"state_id":"gone","confirmed":true}`)
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("status = %d, want 410", resp.StatusCode)
	}

	var body agentsvc.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Type != "error" || body.Content != expiredActionMessage {
		t.Errorf("body = %+v", body)
	}
}

func TestRoutes(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"chat", "POST", "/api/ai/chat", `{"message":"hi"}`, 200},
		{"chat empty", "POST", "/api/ai/chat", `{"message":" "}`, 400},
		{"confirm", "POST", "/api/ai/chat/confirm", `{"state_id":"s","confirmed":true}`, 200},
		{"history", "GET", "/api/ai/chat/history?conversation_id=c1", "", 200},
		{"history missing id", "GET", "/api/ai/chat/history", "", 400},
		{"clear history", "DELETE", "/api/ai/chat/history?conversation_id=c1", "", 200},
		{"conversations", "GET", "/api/ai/conversations", "", 200},
		{"favorites", "GET", "/api/ai/favorites", "", 200},
		{"add favorite", "POST", "/api/ai/favorites", `{"query":"top clients"}`, 201},
		{"remove favorite", "DELETE", "/api/ai/favorites/3", "", 204},
		{"remove missing favorite", "DELETE", "/api/ai/favorites/404", "", 404},
		{"remove bad id", "DELETE", "/api/ai/favorites/abc", "", 400},
		{"config", "GET", "/api/ai/config", "", 200},
		{"health", "GET", "/health", "", 200},
		{"wrong method", "PUT", "/api/ai/config", "", 405},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, tt.method, srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}

	if svc.removed != 3 {
		t.Errorf("removed = %d, want 3", svc.removed)
	}
	if svc.cleared != "c1" {
		t.Errorf("cleared = %q, want c1", svc.cleared)
	}
}

func TestHealthDegraded(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{
		"sqlite": func(context.Context) error { return fmt.Errorf("database is locked") },
	})
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestWebSocketChat(t *testing.T) {
	srv := newTestServer(t, &fakeService{events: streamEvents()})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ai/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(agentsvc.ChatRequest{Message: "income?"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got []string
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}
		got = append(got, frame.Event)
	}

	want := []string{"tool_start", "text_delta", "done"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("frames = %v, want %v", got, want)
	}
}
