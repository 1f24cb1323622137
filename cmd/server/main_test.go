package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/miguelbenajes/HoldedConnector/internal/config"
)

func TestNewCORS_Preflight(t *testing.T) {
	tests := []struct {
		name      string
		headers   string
		wantAllow bool
	}{
		{"authorization", "authorization,content-type", true},
		{"last event id", "last-event-id", false},
	}

	h := newCORS([]string{"http://localhost:3000"}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/ai/chat/stream", nil)
			req.Header.Set("Origin", "http://localhost:3000")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", tt.headers)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			allowed := rec.Header().Get("Access-Control-Allow-Origin") != ""
			if allowed != tt.wantAllow {
				t.Errorf("preflight allowed = %v, want %v", allowed, tt.wantAllow)
			}
		})
	}
}

func TestNewGenerator(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name     string
		cfg      config.Config
		wantName string
		wantErr  bool
	}{
		{"lorem provider", config.Config{Provider: "lorem", Model: "gpt-4o-mini"}, "lorem", false},
		{"lorem model", config.Config{Provider: "openai", Model: "lorem-fast"}, "lorem", false},
		{"openai", config.Config{Provider: "openai", OpenAIAPIKey: "sk-test", Model: "gpt-4o-mini"}, "openai", false},
		{"anthropic", config.Config{Provider: "anthropic", AnthropicAPIKey: "sk-ant-test", Model: "claude-sonnet-4-5"}, "anthropic", false},
		{"anthropic without key", config.Config{Provider: "anthropic", Model: "claude-sonnet-4-5"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := newGenerator(&tt.cfg, logger)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newGenerator: %v", err)
			}
			if gen.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", gen.Name(), tt.wantName)
			}
		})
	}
}
