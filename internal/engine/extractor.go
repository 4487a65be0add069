package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/prosperitypirate/opencode-memory/internal/llm"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// Message is one role-tagged turn of a conversation transcript.
type Message struct {
	Role    string
	Content string
}

// Extractor turns heterogeneous input (a conversation, a session summary, or
// raw project-file text) into fact candidates by calling the LLM in one of
// three prompt modes. It never returns an error for "no facts found": a
// parse failure or upstream error yields an empty result with a nil error, per
// the "Extractor never raises" contract.
type Extractor struct {
	chat    llm.ChatCapability
	timeout time.Duration
}

// NewExtractor wraps a chat capability. timeout bounds every LLM call made
// by the Extractor (default 60s, matching the suspension-point contract).
func NewExtractor(chat llm.ChatCapability, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Extractor{chat: chat, timeout: timeout}
}

// FlattenMessages renders a transcript as "[role] text\n..." lines, the
// shape every extraction prompt expects.
func FlattenMessages(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	return b.String()
}

// ExtractConversation runs conversation-mode extraction: an ordered
// transcript becomes a list of fact candidates biased toward durable,
// non-trivial facts. chunk is the truncated source text, reused verbatim on
// every returned candidate so Search can surface exact source values later.
func (e *Extractor) ExtractConversation(ctx context.Context, messages []Message) (facts []llm.FactCandidate, chunk string, err error) {
	flattened := FlattenMessages(messages)
	system, user := llm.ExtractionPrompt(flattened)
	raw, callErr := e.call(ctx, system, user)
	if callErr != nil {
		log.Printf("engine: extractor: conversation mode upstream error, returning no facts: %v", callErr)
		return nil, truncated(flattened), nil
	}
	return llm.ParseFacts(raw), truncated(flattened), nil
}

// ExtractSummary runs summary mode: the transcript must collapse to exactly
// one session-summary candidate (the LLM is instructed to emit a single
// object; ParseFacts still applies the general repair rules on top).
func (e *Extractor) ExtractSummary(ctx context.Context, messages []Message) (facts []llm.FactCandidate, chunk string, err error) {
	flattened := FlattenMessages(messages)
	system, user := llm.SummaryPrompt(flattened)
	raw, callErr := e.call(ctx, system, user)
	if callErr != nil {
		log.Printf("engine: extractor: summary mode upstream error, returning no facts: %v", callErr)
		return nil, truncated(flattened), nil
	}
	return llm.ParseFacts(raw), truncated(flattened), nil
}

// ExtractInit runs init mode over raw project-file text. The prompt is
// instructed to always emit a project-brief plus whatever architecture,
// tech-context, or product-context facts the text justifies.
func (e *Extractor) ExtractInit(ctx context.Context, content string) (facts []llm.FactCandidate, chunk string, err error) {
	system, user := llm.InitExtractionPrompt(content)
	raw, callErr := e.call(ctx, system, user)
	if callErr != nil {
		log.Printf("engine: extractor: init mode upstream error, returning no facts: %v", callErr)
		return nil, truncated(content), nil
	}
	return llm.ParseFacts(raw), truncated(content), nil
}

// Condense turns an aging session-summary's text into a single
// learned-pattern candidate. An empty result (parse failure or upstream
// error) signals the caller (the Ager) to preserve rather than delete.
func (e *Extractor) Condense(ctx context.Context, summaryText string) ([]llm.FactCandidate, error) {
	system, user := llm.CondensePrompt(summaryText)
	raw, err := e.call(ctx, system, user)
	if err != nil {
		log.Printf("engine: extractor: condense upstream error, preserving original: %v", err)
		return nil, nil
	}
	return llm.ParseFacts(raw), nil
}

// ClassifySuperseded asks the LLM which of candidates are logically
// superseded by newText and returns the subset of candidate ids it names.
// Ids outside the candidate set are dropped (defensive against a
// hallucinated id) and logged at warn, per the "preserve but log" decision.
func (e *Extractor) ClassifySuperseded(ctx context.Context, newText string, candidates []*types.Memory) []string {
	if len(candidates) == 0 {
		return nil
	}
	var b strings.Builder
	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		fmt.Fprintf(&b, "- ID: %s | %s\n", c.ID, c.Memory)
		known[c.ID] = true
	}

	system, user := llm.ContradictionPrompt(newText, b.String())
	raw, err := e.call(ctx, system, user)
	if err != nil {
		log.Printf("engine: extractor: supersession classifier upstream error, no retirements: %v", err)
		return nil
	}

	ids := llm.ParseSupersededIDs(raw)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if known[id] {
			out = append(out, id)
		} else {
			log.Printf("engine: extractor: supersession classifier named unknown id %q, ignoring", id)
		}
	}
	return out
}

func (e *Extractor) call(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.chat.Chat(ctx, system, user)
}

func truncated(s string) string {
	if len(s) <= llm.MaxConversationChars {
		return s
	}
	return s[:llm.MaxConversationChars]
}
