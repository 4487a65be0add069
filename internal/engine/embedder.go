package engine

import (
	"context"
	"time"

	"github.com/prosperitypirate/opencode-memory/internal/llm"
)

// Embedder turns a string into a fixed-dimension unit-norm vector. It is a
// thin adapter over llm.EmbedCapability that applies the request timeout
// every suspension point in the core must honor.
type Embedder struct {
	client  llm.EmbedCapability
	timeout time.Duration
}

// NewEmbedder wraps an embed capability. timeout defaults to 60s.
func NewEmbedder(client llm.EmbedCapability, timeout time.Duration) *Embedder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Embedder{client: client, timeout: timeout}
}

// Embed returns the embedding for text. role is "document" for stored facts
// or "query" for search queries.
func (e *Embedder) Embed(ctx context.Context, text string, role string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.client.Embed(ctx, text, role)
}
