package engine

import (
	"context"
	"log"

	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// Versioner runs on every INSERT whose type is outside VersioningSkipTypes:
// it searches for same-user near neighbors within the type's contradiction
// radius, asks the LLM classifier which are logically superseded, and
// retires those rows.
type Versioner struct {
	store     storage.Store
	extractor *Extractor
	limits    types.Limits
	sink      EventSink
}

// NewVersioner wraps a store and the Extractor used for supersession
// classification, using the default lifecycle constants and no event sink.
func NewVersioner(store storage.Store, extractor *Extractor) *Versioner {
	return NewVersionerWithLimits(store, extractor, types.DefaultLimits(), nil)
}

// NewVersionerWithLimits wraps a store and Extractor with an
// operator-supplied Limits value and an optional EventSink (may be nil).
func NewVersionerWithLimits(store storage.Store, extractor *Extractor, limits types.Limits, sink EventSink) *Versioner {
	return &Versioner{store: store, extractor: extractor, limits: limits, sink: sink}
}

// Apply runs the Versioner for a freshly inserted row. Any failure along the
// way (candidate search, classification) is logged and produces zero
// retirements; the newly inserted row remains live either way. Every
// retirement that does succeed is also pushed to the sink, if one is wired.
func (v *Versioner) Apply(ctx context.Context, inserted *types.Memory) {
	factType := inserted.Type()
	if types.VersioningSkipTypes[factType] {
		return
	}

	radius := v.limits.ContradictionRadius(factType)
	candidates, err := v.store.Search(ctx, inserted.UserID, inserted.Vector, storage.SearchOptions{
		Limit:     v.limits.ContradictionCandidateLimit,
		Threshold: 1 - radius,
		ExcludeID: inserted.ID,
	})
	if err != nil {
		log.Printf("engine: versioner: candidate search failed, no retirements: %v", err)
		return
	}
	if len(candidates) == 0 {
		return
	}

	supersededIDs := v.extractor.ClassifySuperseded(ctx, inserted.Memory, candidates)
	for _, id := range supersededIDs {
		if err := v.store.Retire(ctx, inserted.UserID, id, inserted.ID); err != nil {
			log.Printf("engine: versioner: retiring %s failed: %v", id, err)
			continue
		}
		if v.sink != nil {
			v.sink.Notify(EventRETIRE, id, factType)
		}
	}
}
