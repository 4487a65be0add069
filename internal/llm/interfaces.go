package llm

import "context"

// ChatCapability is the abstract capability the Extractor and Versioner
// depend on: send a system/user prompt pair, get back raw completion text.
// The core never sees provider-specific request/response shapes past this
// boundary.
type ChatCapability interface {
	Chat(ctx context.Context, system, user string) (string, error)
	GetModel() string
}

// EmbedCapability is the abstract capability the Embedder depends on.
// role is "document" for stored facts or "query" for search queries; some
// providers (Voyage) use it to pick an asymmetric embedding mode.
type EmbedCapability interface {
	Embed(ctx context.Context, text string, role string) ([]float32, error)
	GetModel() string
}

// UsageRecorder is a non-blocking sink for token/cost accounting. The
// telemetry sink itself is out of scope for the core; this interface lets a
// provider client report usage without depending on a concrete ledger type.
type UsageRecorder interface {
	RecordUsage(provider string, promptTokens, completionTokens int)
}

// noopUsageRecorder discards usage reports. Used when no recorder is wired.
type noopUsageRecorder struct{}

func (noopUsageRecorder) RecordUsage(string, int, int) {}
