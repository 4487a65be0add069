package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/prosperitypirate/opencode-memory/internal/llm"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// fakeSink records every notification pushed through an EventSink, for
// tests asserting the Versioner/Ager surface lifecycle events correctly.
type fakeSink struct {
	events []sinkEvent
}

type sinkEvent struct {
	event    string
	id       string
	factType types.FactType
}

func (f *fakeSink) Notify(event, id string, factType types.FactType) {
	f.events = append(f.events, sinkEvent{event: event, id: id, factType: factType})
}

// fakeChat is a scripted llm.ChatCapability: each call pops the next queued
// response (or error) in order, so a test can drive the Extractor/Versioner
// through several rounds of classification deterministically.
type fakeChat struct {
	responses []string
	errs      []error
	calls     []string // recorded user prompts, for assertions
	i         int
}

func (f *fakeChat) Chat(ctx context.Context, system, user string) (string, error) {
	f.calls = append(f.calls, user)
	if f.i >= len(f.responses) && f.i >= len(f.errs) {
		return "", fmt.Errorf("fakeChat: no scripted response for call %d", f.i)
	}
	var resp string
	var err error
	if f.i < len(f.responses) {
		resp = f.responses[f.i]
	}
	if f.i < len(f.errs) {
		err = f.errs[f.i]
	}
	f.i++
	return resp, err
}

func (f *fakeChat) GetModel() string { return "fake-chat-model" }

// fakeEmbed returns a deterministic unit vector derived from the input text's
// bytes spread across its dimensions, so distinct strings land at different
// points and
// identical strings always embed identically.
type fakeEmbed struct {
	dims int
	// overrides maps exact input text to a fixed vector, for tests that need
	// precise control over cosine distance between two specific facts.
	overrides map[string][]float32
	err       error
}

func (f *fakeEmbed) Embed(ctx context.Context, text string, role string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.overrides[text]; ok {
		return v, nil
	}
	dims := f.dims
	if dims == 0 {
		dims = 8
	}
	v := make([]float32, dims)
	for i, b := range []byte(text) {
		v[i%dims] += float32(b) * float32(i+1)
	}
	if len(text) == 0 {
		v[0] = 1
	}
	return normalize(v), nil
}

func (f *fakeEmbed) GetModel() string { return "fake-embed-model" }

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	n := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

var _ llm.ChatCapability = (*fakeChat)(nil)
var _ llm.EmbedCapability = (*fakeEmbed)(nil)
