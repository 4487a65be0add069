package engine

import (
	"context"
	"log"
	"sort"

	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// Ager enforces the per-type rolling-window rules that run after every
// successful INSERT: progress keeps only the latest live row; session
// summaries are capped at MaxSessionSummaries, condensing the oldest into a
// learned-pattern before deleting it.
type Ager struct {
	store     storage.Store
	extractor *Extractor
	embedder  *Embedder
	limits    types.Limits
	sink      EventSink
}

// NewAger wraps a store, the Extractor used for condensation, and the
// Embedder used to give the condensed row a searchable vector, using the
// default lifecycle constants and no event sink.
func NewAger(store storage.Store, extractor *Extractor, embedder *Embedder) *Ager {
	return NewAgerWithSink(store, extractor, embedder, types.DefaultLimits(), nil)
}

// NewAgerWithSink wraps a store, Extractor, and Embedder with an
// operator-supplied Limits value and an optional EventSink (may be nil).
func NewAgerWithSink(store storage.Store, extractor *Extractor, embedder *Embedder, limits types.Limits, sink EventSink) *Ager {
	return &Ager{store: store, extractor: extractor, embedder: embedder, limits: limits, sink: sink}
}

// Apply runs the aging rule for inserted's type, if it has one. Only
// triggered by the caller after a successful INSERT (never after UPDATE).
func (a *Ager) Apply(ctx context.Context, inserted *types.Memory) {
	switch inserted.Type() {
	case types.TypeProgress:
		a.collapseProgress(ctx, inserted)
	case types.TypeSessionSummary:
		a.ageSessionSummaries(ctx, inserted)
	}
}

// collapseProgress restores invariant I5: at most one live progress row per
// user. Superseded progress rows are hard deleted, not retired.
func (a *Ager) collapseProgress(ctx context.Context, inserted *types.Memory) {
	rows, err := a.store.ListByType(ctx, inserted.UserID, types.TypeProgress)
	if err != nil {
		log.Printf("engine: ager: listing progress rows failed, skipping collapse: %v", err)
		return
	}
	for _, row := range rows {
		if row.ID == inserted.ID {
			continue
		}
		if err := a.store.Delete(ctx, inserted.UserID, row.ID); err != nil {
			log.Printf("engine: ager: deleting stale progress row %s failed: %v", row.ID, err)
			continue
		}
		if a.sink != nil {
			a.sink.Notify(EventDELETE, row.ID, types.TypeProgress)
		}
	}
}

// ageSessionSummaries enforces the MaxSessionSummaries rolling window. When
// the window is exceeded, the single oldest row is condensed into a
// learned-pattern via the Extractor and then deleted. If condensation fails
// (the Extractor returns nothing), the oldest row is preserved rather than
// silently dropped.
func (a *Ager) ageSessionSummaries(ctx context.Context, inserted *types.Memory) {
	rows, err := a.store.ListByType(ctx, inserted.UserID, types.TypeSessionSummary)
	if err != nil {
		log.Printf("engine: ager: listing session summaries failed, skipping aging: %v", err)
		return
	}
	if len(rows) <= a.limits.MaxSessionSummaries {
		return
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	oldest := rows[0]

	candidates, err := a.extractor.Condense(ctx, oldest.Memory)
	if err != nil || len(candidates) == 0 {
		log.Printf("engine: ager: condensation produced no learned-pattern, preserving %s", oldest.ID)
		return
	}

	condensed := candidates[0]
	meta := types.Metadata{}
	meta.SetType(types.TypeLearnedPattern)
	meta["condensed_from"] = oldest.ID

	vector, err := a.embedder.Embed(ctx, condensed.Memory, "document")
	if err != nil {
		log.Printf("engine: ager: embedding condensed row failed, preserving %s: %v", oldest.ID, err)
		return
	}

	now := nowUTC()
	row := &types.Memory{
		ID:        newMemoryID(),
		UserID:    inserted.UserID,
		Memory:    condensed.Memory,
		Vector:    vector,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.Append(ctx, row); err != nil {
		log.Printf("engine: ager: inserting condensed row failed, preserving %s: %v", oldest.ID, err)
		return
	}
	if a.sink != nil {
		a.sink.Notify(EventCONDENSE, row.ID, types.TypeLearnedPattern)
	}

	if err := a.store.Delete(ctx, inserted.UserID, oldest.ID); err != nil {
		log.Printf("engine: ager: deleting condensed session summary %s failed: %v", oldest.ID, err)
		return
	}
	if a.sink != nil {
		a.sink.Notify(EventDELETE, oldest.ID, types.TypeSessionSummary)
	}
}
