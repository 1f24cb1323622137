package lorem

import (
	"context"
	"strings"
	"testing"

	agentsvc "github.com/miguelbenajes/HoldedConnector/internal/domain/services/agent"
)

func collect(t *testing.T, p *Provider, model string) (string, string) {
	t.Helper()
	chunks, err := p.Generate(context.Background(), &agentsvc.GenerateRequest{Model: model})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	var text strings.Builder
	var finish string
	for c := range chunks {
		if c.Err != nil {
			t.Fatalf("chunk error: %v", c.Err)
		}
		if c.ToolCall != nil {
			t.Fatal("lorem provider requested a tool")
		}
		text.WriteString(c.TextDelta)
		if c.FinishReason != "" {
			finish = c.FinishReason
		}
	}
	return text.String(), finish
}

func TestGenerate(t *testing.T) {
	p := NewProvider(20)

	text, finish := collect(t, p, "lorem-instant")
	if finish != "stop" {
		t.Errorf("finish = %q, want stop", finish)
	}
	if n := len(strings.Fields(text)); n < 20 {
		t.Errorf("words = %d, want >= 20", n)
	}

	_, finish = collect(t, p, "lorem-instant-cutoff")
	if finish != "length" {
		t.Errorf("cutoff finish = %q, want length", finish)
	}
}

func TestGenerateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := NewProvider(50).Generate(ctx, &agentsvc.GenerateRequest{Model: "lorem-slow"})
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	for range chunks {
	}
}

func TestSupportsModel(t *testing.T) {
	p := NewProvider(0)
	if !p.SupportsModel("lorem-fast") || p.SupportsModel("gpt-4o-mini") {
		t.Error("SupportsModel mismatch")
	}
}
