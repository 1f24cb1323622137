// Package lorem provides a mock Generator that streams lorem ipsum text.
// Used for development without an API key.
package lorem

import (
	"context"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"

	agentsvc "github.com/miguelbenajes/HoldedConnector/internal/domain/services/agent"
)

// ModelPrefix marks models served by this provider, e.g. "lorem-fast".
const ModelPrefix = "lorem-"

// Provider streams random sentences and never requests tools.
type Provider struct {
	generator *loremgen.Lorem
	words     int
}

// NewProvider creates a lorem provider replying with roughly words words.
func NewProvider(words int) *Provider {
	if words <= 0 {
		words = 40
	}
	return &Provider{generator: loremgen.New(), words: words}
}

func (p *Provider) Name() string {
	return "lorem"
}

// SupportsModel reports whether model is a lorem model.
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, ModelPrefix)
}

func (p *Provider) Generate(ctx context.Context, req *agentsvc.GenerateRequest) (<-chan agentsvc.Chunk, error) {
	words := p.text(p.words)
	delay := streamDelay(req.Model)

	finish := "stop"
	if isCutoffModel(req.Model) {
		words = words[:len(words)/2]
		finish = "length"
	}

	out := make(chan agentsvc.Chunk)
	go func() {
		defer close(out)

		for i, w := range words {
			if i > 0 {
				w = " " + w
			}
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					out <- agentsvc.Chunk{Err: ctx.Err()}
					return
				}
			}
			select {
			case out <- agentsvc.Chunk{TextDelta: w}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case out <- agentsvc.Chunk{FinishReason: finish}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

// text builds at least n words from whole sentences.
func (p *Provider) text(n int) []string {
	var words []string
	for len(words) < n {
		words = append(words, strings.Fields(p.generator.Sentence(5, 15))...)
	}
	return words
}

// streamDelay returns the delay between words based on the model name.
//   - lorem-slow: 2 words/second
//   - lorem-fast: 30 words/second
//   - lorem-instant: no delay
//   - default: 10 words/second
func streamDelay(model string) time.Duration {
	switch {
	case strings.Contains(model, "instant"):
		return 0
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// isCutoffModel reports whether the model simulates a max_tokens cutoff.
func isCutoffModel(model string) bool {
	return strings.Contains(model, "cutoff")
}
