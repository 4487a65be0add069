// Package engine implements the memory lifecycle pipeline: the Extractor,
// Embedder, Deduper, Versioner, and Ager that together turn ingested text
// into a deduplicated, versioned corpus, plus the Search ranker that
// retrieves from it.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prosperitypirate/opencode-memory/internal/llm"
	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// EventADD and EventUPDATE label what the Deduper decided for a given fact,
// surfaced in the ingestion response per the external interface contract.
// EventRETIRE, EventDELETE, and EventCONDENSE label the side effects of the
// Versioner and Ager, which run inline after each INSERT but are not part of
// the ingestion response; they are only ever observed through an EventSink.
const (
	EventADD      = "ADD"
	EventUPDATE   = "UPDATE"
	EventRETIRE   = "RETIRE"
	EventDELETE   = "DELETE"
	EventCONDENSE = "CONDENSE"
)

// EventSink receives lifecycle notifications that fall outside the direct
// ingestion response: a row retired by the Versioner, or a row deleted or
// condensed by the Ager. Wired optionally via WithEventSink; nil means these
// side effects are not observed.
type EventSink interface {
	Notify(event, id string, factType types.FactType)
}

// Result is one outcome of an ingestion request: a stored (or updated)
// memory plus the event that produced it.
type Result struct {
	ID     string
	Memory string
	Event  string
}

// Engine wires the five pipeline components together and exposes the two
// data-plane operations: Ingest and Search.
type Engine struct {
	store     storage.Store
	extractor *Extractor
	embedder  *Embedder
	deduper   *Deduper
	versioner *Versioner
	ager      *Ager
	ranker    *Ranker
	sink      EventSink
}

// Option configures optional Engine behavior beyond the required
// constructor arguments: operator-tunable lifecycle limits and a lifecycle
// event sink.
type Option func(*engineConfig)

type engineConfig struct {
	limits types.Limits
	sink   EventSink
}

// WithLimits overrides the default lifecycle constants (dedup/contradiction
// radii, session-summary window) with an operator-supplied value, typically
// sourced from internal/config's LimitsConfig.
func WithLimits(limits types.Limits) Option {
	return func(c *engineConfig) { c.limits = limits }
}

// WithEventSink wires a sink that receives RETIRE/DELETE/CONDENSE
// notifications from the Versioner and Ager, which otherwise only affect
// storage and never surface through Ingest's return value.
func WithEventSink(sink EventSink) Option {
	return func(c *engineConfig) { c.sink = sink }
}

// New builds an Engine from a store and the two abstract capabilities the
// core depends on. timeout bounds every LLM/embedding call (default 60s).
func New(store storage.Store, chat llm.ChatCapability, embed llm.EmbedCapability, timeout time.Duration, opts ...Option) *Engine {
	cfg := engineConfig{limits: types.DefaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}

	extractor := NewExtractor(chat, timeout)
	embedder := NewEmbedder(embed, timeout)
	return &Engine{
		store:     store,
		extractor: extractor,
		embedder:  embedder,
		deduper:   NewDeduperWithLimits(store, cfg.limits),
		versioner: NewVersionerWithLimits(store, extractor, cfg.limits, cfg.sink),
		ager:      NewAgerWithSink(store, extractor, embedder, cfg.limits, cfg.sink),
		ranker:    NewRanker(store, embedder),
		sink:      cfg.sink,
	}
}

// Search runs the Search/Ranker component: embed query, cosine top-k,
// recency-blend, threshold filter, descending sort.
func (e *Engine) Search(ctx context.Context, userID, query string, opts SearchOptions) ([]RankedResult, error) {
	return e.ranker.Search(ctx, userID, query, opts)
}

// Get retrieves a single memory by id, scoped to userID.
func (e *Engine) Get(ctx context.Context, userID, id string) (*types.Memory, error) {
	return e.store.Get(ctx, userID, id)
}

// Delete unconditionally removes a memory by id, scoped to userID.
func (e *Engine) Delete(ctx context.Context, userID, id string) error {
	return e.store.Delete(ctx, userID, id)
}

// ListByType returns every live row of factType for userID, newest first.
func (e *Engine) ListByType(ctx context.Context, userID string, factType types.FactType) ([]*types.Memory, error) {
	return e.store.ListByType(ctx, userID, factType)
}

// List returns up to limit rows for userID, newest-updated first, backing
// the GET /memories listing endpoint.
func (e *Engine) List(ctx context.Context, userID string, includeSuperseded bool, limit int) ([]*types.Memory, error) {
	return e.store.List(ctx, userID, includeSuperseded, limit)
}

// Ingest runs the full pipeline: request -> Extractor -> for each fact
// {Embed -> Dedup -> (UPDATE | INSERT then Versioner then Ager)}. Facts are
// processed strictly in order within one request: a later fact may
// legitimately deduplicate against an earlier one from the same batch.
func (e *Engine) Ingest(ctx context.Context, userID string, messages []Message, metadata types.Metadata) ([]Result, error) {
	facts, chunk, err := e.extractor.ExtractConversation(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("engine: ingest: extraction failed: %w", err)
	}
	return e.ingestFacts(ctx, userID, facts, chunk, metadata)
}

// IngestSummary runs the pipeline in summary mode: the transcript collapses
// to (at most) one session-summary fact.
func (e *Engine) IngestSummary(ctx context.Context, userID string, messages []Message, metadata types.Metadata) ([]Result, error) {
	facts, chunk, err := e.extractor.ExtractSummary(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("engine: ingest summary: extraction failed: %w", err)
	}
	return e.ingestFacts(ctx, userID, facts, chunk, metadata)
}

// IngestInit runs the pipeline in init mode over raw project-file text.
func (e *Engine) IngestInit(ctx context.Context, userID string, content string, metadata types.Metadata) ([]Result, error) {
	facts, chunk, err := e.extractor.ExtractInit(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("engine: ingest init: extraction failed: %w", err)
	}
	return e.ingestFacts(ctx, userID, facts, chunk, metadata)
}

func (e *Engine) ingestFacts(ctx context.Context, userID string, facts []llm.FactCandidate, chunk string, callerMetadata types.Metadata) ([]Result, error) {
	results := make([]Result, 0, len(facts))
	for _, fact := range facts {
		result, err := e.ingestOne(ctx, userID, fact, chunk, callerMetadata)
		if err != nil {
			return results, fmt.Errorf("engine: ingest: %w", err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *Engine) ingestOne(ctx context.Context, userID string, fact llm.FactCandidate, chunk string, callerMetadata types.Metadata) (Result, error) {
	vector, err := e.embedder.Embed(ctx, fact.Memory, "document")
	if err != nil {
		return Result{}, fmt.Errorf("embed failed: %w", err)
	}

	if dup := e.deduper.FindDuplicate(ctx, userID, vector, fact.Type); dup != nil {
		dup.Memory = fact.Memory
		dup.Chunk = chunk
		dup.Metadata = mergeMetadata(dup.Metadata, callerMetadata, fact.Type)
		dup.Hash = hashText(fact.Memory)
		dup.UpdatedAt = nowUTC()
		if err := e.store.Update(ctx, userID, dup); err != nil {
			return Result{}, fmt.Errorf("update failed: %w", err)
		}
		return Result{ID: dup.ID, Memory: dup.Memory, Event: EventUPDATE}, nil
	}

	now := nowUTC()
	row := &types.Memory{
		ID:        newMemoryID(),
		UserID:    userID,
		Memory:    fact.Memory,
		Vector:    vector,
		Chunk:     chunk,
		Metadata:  mergeMetadata(types.Metadata{}, callerMetadata, fact.Type),
		Hash:      hashText(fact.Memory),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.Append(ctx, row); err != nil {
		return Result{}, fmt.Errorf("insert failed: %w", err)
	}

	e.versioner.Apply(ctx, row)
	e.ager.Apply(ctx, row)

	return Result{ID: row.ID, Memory: row.Memory, Event: EventADD}, nil
}

// mergeMetadata starts from base, layers the caller-supplied tags on top,
// and finally sets type so it can never be overridden by caller metadata.
func mergeMetadata(base, caller types.Metadata, factType types.FactType) types.Metadata {
	out := types.Metadata{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range caller {
		out[k] = v
	}
	out.SetType(factType)
	return out
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newMemoryID() string {
	return uuid.NewString()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
