package llm

import "errors"

// ErrUpstreamLLM wraps any non-2xx/timeout/transport failure from a chat
// provider. The engine's Extractor, Versioner, and Ager log it and carry on
// with no result, so it never fails an ingestion request.
var ErrUpstreamLLM = errors.New("llm: upstream chat provider error")

// ErrUpstreamEmbed wraps any non-2xx/timeout/transport failure from an
// embedding provider.
var ErrUpstreamEmbed = errors.New("llm: upstream embedding provider error")
