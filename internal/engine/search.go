package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// searchCandidatePoolFactor widens the store-side candidate pool beyond the
// requested limit: the recency blend can promote a row that a pure-semantic
// prefilter would have discarded, so ranking must happen over a superset.
const searchCandidatePoolFactor = 5

// minSearchCandidatePool is the floor for the widened pool, so small limits
// (e.g. limit=1) still see enough neighbors for the recency blend to matter.
const minSearchCandidatePool = 20

// RankedResult is one row of a search response: the stored memory plus its
// blended relevance score.
type RankedResult struct {
	ID        string
	Memory    string
	Chunk     string
	Metadata  types.Metadata
	CreatedAt time.Time
	Date      string
	Score     float64
}

// Ranker implements the Search component: embed query, cosine top-k search,
// semantic/recency score blend, threshold filter, descending sort.
type Ranker struct {
	store    storage.Store
	embedder *Embedder
}

// NewRanker wraps a store and the Embedder used to embed queries.
func NewRanker(store storage.Store, embedder *Embedder) *Ranker {
	return &Ranker{store: store, embedder: embedder}
}

// SearchOptions configures a search request.
type SearchOptions struct {
	Limit         int
	Threshold     float64
	RecencyWeight float64
	TypeFilter    types.FactType
}

// Search embeds query, retrieves a candidate pool, scores each by semantic
// similarity optionally blended with recency, filters by threshold, and
// returns results sorted by descending score.
func (r *Ranker) Search(ctx context.Context, userID, query string, opts SearchOptions) ([]RankedResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = types.DefaultSearchLimit
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = types.DefaultSearchThreshold
	}

	vector, err := r.embedder.Embed(ctx, query, "query")
	if err != nil {
		return nil, fmt.Errorf("engine: search: embed query failed: %w", err)
	}

	pool := limit * searchCandidatePoolFactor
	if pool < minSearchCandidatePool {
		pool = minSearchCandidatePool
	}
	candidates, err := r.store.Search(ctx, userID, vector, storage.SearchOptions{
		Limit:      pool,
		TypeFilter: opts.TypeFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: search: store search failed: %w", err)
	}

	scored := make([]RankedResult, 0, len(candidates))
	semantics := make([]float64, len(candidates))
	dates := make([]*time.Time, len(candidates))
	var maxDate *time.Time

	for i, c := range candidates {
		distance := cosineDistance(vector, c.Vector)
		semantics[i] = math.Max(0, 1-distance)
		if d, ok := sessionDate(c); ok {
			dates[i] = &d
			if maxDate == nil || d.After(*maxDate) {
				maxDate = &d
			}
		}
	}

	for i, c := range candidates {
		score := semantics[i]
		if opts.RecencyWeight > 0 && maxDate != nil {
			recency := 0.0
			if dates[i] != nil {
				deltaDays := maxDate.Sub(*dates[i]).Hours() / 24
				if deltaDays < 0 {
					deltaDays = 0
				}
				recency = math.Exp(-0.1 * deltaDays)
			}
			score = (1-opts.RecencyWeight)*semantics[i] + opts.RecencyWeight*recency
		}

		if score < threshold {
			continue
		}

		result := RankedResult{
			ID:        c.ID,
			Memory:    c.Memory,
			Chunk:     c.Chunk,
			Metadata:  c.Metadata,
			CreatedAt: c.CreatedAt,
			Score:     score,
		}
		if dates[i] != nil {
			result.Date = dates[i].Format("2006-01-02")
		}
		scored = append(scored, result)
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// sessionDate returns m's session date: metadata.date if present (ok is
// false when it does not parse), else the date portion of created_at.
func sessionDate(m *types.Memory) (time.Time, bool) {
	if d := m.Metadata.Date(); d != "" {
		if t, err := time.Parse("2006-01-02", d); err == nil {
			return t, true
		}
		return time.Time{}, false
	}
	return time.Date(m.CreatedAt.Year(), m.CreatedAt.Month(), m.CreatedAt.Day(), 0, 0, 0, 0, time.UTC), true
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
