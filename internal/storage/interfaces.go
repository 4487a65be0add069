// Package storage defines the vector-store contract the engine depends on:
// schema-typed append, row update by id, delete by id, and cosine-metric
// top-k search with a pre-filter on user and optionally fact type. Backends
// live in the postgres and sqlite subpackages; callers depend only on Store.
package storage

import (
	"context"
	"errors"

	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// ErrNotFound indicates the requested memory row does not exist.
var ErrNotFound = errors.New("storage: memory not found")

// SearchOptions constrains a vector search.
type SearchOptions struct {
	// Limit caps the number of rows returned, ranked by ascending distance.
	Limit int

	// Threshold is the minimum semantic score (1 - cosine distance) a row
	// must clear to be included. Zero means no threshold filtering.
	Threshold float64

	// TypeFilter restricts the search to a single fact type. Empty means
	// search across all types.
	TypeFilter types.FactType

	// ExcludeID omits a single memory id from the result set, used by the
	// Versioner to leave the freshly inserted row out of its own candidates.
	ExcludeID string
}

// Store is the storage-engine-agnostic contract the memory pipeline runs
// against. All methods are scoped to a single user: the store must never
// let one user's rows leak into another's results.
type Store interface {
	// Append inserts a new memory row. Memory.ID is assigned by the caller.
	Append(ctx context.Context, m *types.Memory) error

	// Get retrieves a single memory by id, scoped to userID. Returns
	// ErrNotFound if no row matches.
	Get(ctx context.Context, userID, id string) (*types.Memory, error)

	// Update overwrites the mutable fields of an existing row: text, chunk,
	// metadata, hash, updated_at, and the embedding from m.Vector. Returns
	// ErrNotFound if the row is absent.
	Update(ctx context.Context, userID string, m *types.Memory) error

	// Retire marks a row as superseded by setting superseded_by=by and
	// bumping updated_at. Retiring an already-retired row overwrites its
	// superseded_by (last writer wins); repeating a retirement is harmless.
	Retire(ctx context.Context, userID, id, by string) error

	// Delete permanently removes a row. Used by the Ager for progress
	// singleton enforcement and session-summary window eviction.
	Delete(ctx context.Context, userID, id string) error

	// ListByType returns all live rows of the given type for a user,
	// ordered newest first. Used by the Ager, which needs the full set of
	// progress/session-summary rows rather than a similarity search.
	ListByType(ctx context.Context, userID string, factType types.FactType) ([]*types.Memory, error)

	// List returns up to limit rows for a user, newest-updated first,
	// including retired rows only when includeSuperseded is true. Backs the
	// GET /memories listing endpoint.
	List(ctx context.Context, userID string, includeSuperseded bool, limit int) ([]*types.Memory, error)

	// Search runs a cosine-distance top-k query against live rows scoped to
	// userID, applying opts as a pre-filter before ranking.
	Search(ctx context.Context, userID string, vector []float32, opts SearchOptions) ([]*types.Memory, error)

	// Close releases any resources (connection pools, file handles) held by
	// the store.
	Close() error
}
