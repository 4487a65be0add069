// Package types defines the data model shared across the memory engine:
// the Memory row, its type taxonomy, and the lifecycle constants that
// govern deduplication, supersession, and aging.
package types

import "time"

// EmbeddingDims is the fixed length of every stored vector. Changing this
// value requires re-embedding the entire corpus; the engine does not do
// online re-embedding on taxonomy or dimension change.
const EmbeddingDims = 1024

// FactType is one label from the closed type taxonomy. It lives inside
// Memory.Metadata under the "type" key and drives every lifecycle rule:
// dedup radius, contradiction radius, Versioner skip, and Ager behavior.
type FactType string

const (
	TypeProjectBrief   FactType = "project-brief"
	TypeArchitecture   FactType = "architecture"
	TypeTechContext    FactType = "tech-context"
	TypeProductContext FactType = "product-context"
	TypeSessionSummary FactType = "session-summary"
	TypeProgress       FactType = "progress"
	TypeErrorSolution  FactType = "error-solution"
	TypePreference     FactType = "preference"
	TypeLearnedPattern FactType = "learned-pattern"
	TypeProjectConfig  FactType = "project-config"
)

// allTypes is the closed taxonomy. IsValidType rejects anything outside it.
var allTypes = map[FactType]bool{
	TypeProjectBrief:   true,
	TypeArchitecture:   true,
	TypeTechContext:    true,
	TypeProductContext: true,
	TypeSessionSummary: true,
	TypeProgress:       true,
	TypeErrorSolution:  true,
	TypePreference:     true,
	TypeLearnedPattern: true,
	TypeProjectConfig:  true,
}

// IsValidType reports whether t is a member of the closed taxonomy.
func IsValidType(t FactType) bool {
	return allTypes[t]
}

// StructuralTypes denotes durable project-level knowledge. Structural facts
// get a widened dedup radius and a widened contradiction radius because the
// corpus should never accumulate near-duplicate copies of architecture-level
// facts.
var StructuralTypes = map[FactType]bool{
	TypeProjectBrief:   true,
	TypeArchitecture:   true,
	TypeTechContext:    true,
	TypeProductContext: true,
	TypeProjectConfig:  true,
}

// VersioningSkipTypes bypass the Versioner entirely because they carry their
// own aging rules (progress: single-live-row; session-summary: rolling
// window with condensation) that would otherwise race with supersession.
var VersioningSkipTypes = map[FactType]bool{
	TypeSessionSummary: true,
	TypeProgress:       true,
}

// Lifecycle constants, grounded in the original Python config module.
const (
	DedupDistance           = 0.12
	StructuralDedupDistance = 0.25

	ContradictionCandidateDistance  = 0.5
	StructuralContradictionDistance = 0.65
	ContradictionCandidateLimit     = 15

	MaxSessionSummaries = 3

	DefaultSearchLimit     = 5
	DefaultSearchThreshold = 0.3
)

// Limits holds the lifecycle tuning constants as a value instead of package
// constants, so an operator-supplied override (internal/config's
// LimitsConfig) can reach the Deduper, Versioner, and Ager without a
// rebuild. DefaultLimits reproduces the constants above exactly.
type Limits struct {
	DedupDistance           float64
	StructuralDedupDistance float64

	ContradictionCandidateDistance  float64
	StructuralContradictionDistance float64
	ContradictionCandidateLimit     int

	MaxSessionSummaries int
}

// DefaultLimits returns the built-in lifecycle constants.
func DefaultLimits() Limits {
	return Limits{
		DedupDistance:                   DedupDistance,
		StructuralDedupDistance:         StructuralDedupDistance,
		ContradictionCandidateDistance:  ContradictionCandidateDistance,
		StructuralContradictionDistance: StructuralContradictionDistance,
		ContradictionCandidateLimit:     ContradictionCandidateLimit,
		MaxSessionSummaries:             MaxSessionSummaries,
	}
}

// DedupRadius returns the distance threshold the Deduper uses for t.
func (l Limits) DedupRadius(t FactType) float64 {
	if StructuralTypes[t] {
		return l.StructuralDedupDistance
	}
	return l.DedupDistance
}

// ContradictionRadius returns the candidate-search radius the Versioner
// uses for t.
func (l Limits) ContradictionRadius(t FactType) float64 {
	if StructuralTypes[t] {
		return l.StructuralContradictionDistance
	}
	return l.ContradictionCandidateDistance
}

// Metadata is the free-form JSON object attached to a Memory row. Two
// well-known optional keys are promoted to typed helpers (Type, Date,
// CondensedFrom); the rest of the object is caller-supplied and opaque to
// the engine.
type Metadata map[string]interface{}

// Type returns the "type" key as a FactType, or "" if absent/not a string.
func (m Metadata) Type() FactType {
	if v, ok := m["type"].(string); ok {
		return FactType(v)
	}
	return ""
}

// SetType sets the "type" key.
func (m Metadata) SetType(t FactType) {
	m["type"] = string(t)
}

// Date returns the "date" key (an ISO yyyy-mm-dd session date), or "" if absent.
func (m Metadata) Date() string {
	if v, ok := m["date"].(string); ok {
		return v
	}
	return ""
}

// CondensedFrom returns the "condensed_from" key, or "" if absent.
func (m Metadata) CondensedFrom() string {
	if v, ok := m["condensed_from"].(string); ok {
		return v
	}
	return ""
}

// Memory is the single logical entity of the corpus: one atomic, typed fact
// with its embedding and lifecycle bookkeeping.
//
// Invariants:
//   - ID is unique across the table.
//   - len(Vector) == EmbeddingDims.
//   - A live row has SupersededBy == "". A retired row has SupersededBy equal
//     to the id of a live row that existed at the moment of retirement;
//     chains are allowed, cycles forbidden.
//   - CreatedAt <= UpdatedAt.
//   - At most one live row per (UserID, type=progress).
//   - At most MaxSessionSummaries live rows per (UserID, type=session-summary).
type Memory struct {
	// ID is an opaque, immutable primary key (UUIDv4 recommended).
	ID string

	// UserID is the partition key; every query filters on it. Charset is
	// restricted to [A-Za-z0-9_.-] and validated at the API boundary.
	UserID string

	// Memory is the atomic fact text, 1-3 sentences.
	Memory string

	// Vector is the unit-norm embedding of Memory, length EmbeddingDims.
	Vector []float32

	// Chunk is the raw source text the fact was extracted from, surfaced
	// verbatim at query time so callers can see exact source values.
	Chunk string

	// Metadata carries the type tag plus any caller-supplied fields.
	Metadata Metadata

	// CreatedAt is set once on insert and never changes.
	CreatedAt time.Time

	// UpdatedAt is bumped on UPDATE-in-place and on supersession.
	UpdatedAt time.Time

	// Hash is a hex digest of Memory text, diagnostic only.
	Hash string

	// SupersededBy is the id of the live row that retired this one. Empty
	// string means the row is live.
	SupersededBy string
}

// Live reports whether the row has not been retired.
func (m *Memory) Live() bool {
	return m.SupersededBy == ""
}

// Type is a convenience accessor for Metadata.Type().
func (m *Memory) Type() FactType {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata.Type()
}
