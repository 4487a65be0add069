package engine

import (
	"context"
	"log"

	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// Deduper finds the nearest same-user neighbor of a new fact's vector and
// decides whether it falls within the type's dedup radius.
type Deduper struct {
	store  storage.Store
	limits types.Limits
}

// NewDeduper wraps a store, using the default lifecycle constants.
func NewDeduper(store storage.Store) *Deduper {
	return NewDeduperWithLimits(store, types.DefaultLimits())
}

// NewDeduperWithLimits wraps a store with an operator-supplied Limits value.
func NewDeduperWithLimits(store storage.Store, limits types.Limits) *Deduper {
	return &Deduper{store: store, limits: limits}
}

// FindDuplicate runs a top-1 cosine nearest-neighbor search for userID and
// returns the match if its distance is within factType's dedup radius, or
// nil if there is no match close enough. A store read failure is tolerated
// as "no duplicate found" per the core's StoreError-on-read policy.
func (d *Deduper) FindDuplicate(ctx context.Context, userID string, vector []float32, factType types.FactType) *types.Memory {
	radius := d.limits.DedupRadius(factType)
	results, err := d.store.Search(ctx, userID, vector, storage.SearchOptions{
		Limit:     1,
		Threshold: 1 - radius,
	})
	if err != nil {
		log.Printf("engine: deduper: search failed, treating as no duplicate: %v", err)
		return nil
	}
	if len(results) == 0 {
		return nil
	}
	return results[0]
}
