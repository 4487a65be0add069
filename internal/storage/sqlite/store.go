// Package sqlite provides a pure-Go SQLite implementation of storage.Store,
// used for local development and single-user deployments that don't want a
// Postgres dependency. It has no native vector index: Search loads live
// rows for the user and ranks them by cosine distance computed in Go.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// Store implements storage.Store using modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// New opens path (use ":memory:" for an ephemeral store) and applies the
// schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// modernc.org/sqlite is not safe for concurrent writers on one *sql.DB.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
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
	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - similarity
}

func (s *Store) Append(ctx context.Context, m *types.Memory) error {
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal metadata: %w", err)
	}
	hash := m.Hash
	if hash == "" {
		sum := sha256.Sum256([]byte(m.Memory))
		hash = hex.EncodeToString(sum[:])
	}
	const q = `
		INSERT INTO memories (id, user_id, text, chunk, metadata, embedding, hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, q, m.ID, m.UserID, m.Memory, m.Chunk, string(metaJSON), encodeVector(m.Vector), hash, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: append: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID, id string) (*types.Memory, error) {
	const q = `
		SELECT id, user_id, text, chunk, metadata, embedding, hash, created_at, updated_at, COALESCE(superseded_by, '')
		FROM memories WHERE user_id = ? AND id = ?
	`
	row := s.db.QueryRowContext(ctx, q, userID, id)
	m, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get: %w", err)
	}
	return m, nil
}

func (s *Store) Update(ctx context.Context, userID string, m *types.Memory) error {
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: marshal metadata: %w", err)
	}
	const q = `
		UPDATE memories SET text = ?, chunk = ?, metadata = ?, embedding = ?, hash = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`
	var embedding []byte
	if len(m.Vector) > 0 {
		embedding = encodeVector(m.Vector)
	}
	res, err := s.db.ExecContext(ctx, q, m.Memory, m.Chunk, string(metaJSON), embedding, m.Hash, m.UpdatedAt, userID, m.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Retire(ctx context.Context, userID, id, by string) error {
	const q = `
		UPDATE memories SET superseded_by = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`
	res, err := s.db.ExecContext(ctx, q, by, time.Now().UTC(), userID, id)
	if err != nil {
		return fmt.Errorf("sqlite: retire: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.Get(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListByType(ctx context.Context, userID string, factType types.FactType) ([]*types.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, chunk, metadata, embedding, hash, created_at, updated_at, COALESCE(superseded_by, '')
		FROM memories WHERE user_id = ? AND superseded_by IS NULL
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list by type: %w", err)
	}
	defer rows.Close()

	all, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	var out []*types.Memory
	for _, m := range all {
		if m.Type() == factType {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, userID string, includeSuperseded bool, limit int) ([]*types.Memory, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
		SELECT id, user_id, text, chunk, metadata, embedding, hash, created_at, updated_at, COALESCE(superseded_by, '')
		FROM memories WHERE user_id = ?
	`
	if !includeSuperseded {
		q += " AND superseded_by IS NULL"
	}
	q += " ORDER BY updated_at DESC LIMIT ?"

	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *Store) Search(ctx context.Context, userID string, vector []float32, opts storage.SearchOptions) ([]*types.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, chunk, metadata, embedding, hash, created_at, updated_at, COALESCE(superseded_by, '')
		FROM memories WHERE user_id = ? AND superseded_by IS NULL
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search: %w", err)
	}
	defer rows.Close()

	all, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	type scored struct {
		m        *types.Memory
		distance float64
	}
	var candidates []scored
	for _, m := range all {
		if opts.TypeFilter != "" && m.Type() != opts.TypeFilter {
			continue
		}
		if opts.ExcludeID != "" && m.ID == opts.ExcludeID {
			continue
		}
		d := cosineDistance(vector, m.Vector)
		if opts.Threshold > 0 && (1-d) < opts.Threshold {
			continue
		}
		candidates = append(candidates, scored{m: m, distance: d})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distance < candidates[j].distance })

	limit := opts.Limit
	if limit <= 0 {
		limit = types.DefaultSearchLimit
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}
	out := make([]*types.Memory, limit)
	for i := 0; i < limit; i++ {
		out[i] = candidates[i].m
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row rowScanner) (*types.Memory, error) {
	var m types.Memory
	var metaStr string
	var embedding []byte
	var supersededBy string
	if err := row.Scan(&m.ID, &m.UserID, &m.Memory, &m.Chunk, &metaStr, &embedding, &m.Hash, &m.CreatedAt, &m.UpdatedAt, &supersededBy); err != nil {
		return nil, err
	}
	m.SupersededBy = supersededBy
	m.Vector = decodeVector(embedding)
	if err := json.Unmarshal([]byte(metaStr), &m.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &m, nil
}

func scanRows(rows *sql.Rows) ([]*types.Memory, error) {
	var out []*types.Memory
	for rows.Next() {
		m, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ storage.Store = (*Store)(nil)
