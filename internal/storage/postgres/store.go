// Package postgres provides a PostgreSQL + pgvector implementation of
// storage.Store.
package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	pgvector "github.com/pgvector/pgvector-go"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// Store implements storage.Store using PostgreSQL with the pgvector
// extension for cosine-distance search.
type Store struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// New opens a connection pool against dsn, applies the base schema, and
// attempts to enable pgvector. A server without the extension installed
// degrades gracefully: writes still succeed, Search returns recency order
// (and no rows at all when a Threshold is set, since no distance is known).
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{db: db}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}

	if _, err := db.Exec(MigrationColumns); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate columns: %w", err)
	}

	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension not available, vector search degraded: %v", err)
		s.pgvectorAvailable = false
	} else {
		s.pgvectorAvailable = true
		if _, err := db.Exec(MigrationPgvector); err != nil {
			log.Printf("postgres: failed to apply pgvector migration, vector search degraded: %v", err)
			s.pgvectorAvailable = false
		}
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Append(ctx context.Context, m *types.Memory) error {
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal metadata: %w", err)
	}
	hash := m.Hash
	if hash == "" {
		sum := sha256.Sum256([]byte(m.Memory))
		hash = hex.EncodeToString(sum[:])
	}

	const q = `
		INSERT INTO memories (id, user_id, text, chunk, metadata, hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.ExecContext(ctx, q, m.ID, m.UserID, m.Memory, m.Chunk, metaJSON, hash, m.CreatedAt, m.UpdatedAt); err != nil {
		return fmt.Errorf("postgres: append: %w", err)
	}

	if s.pgvectorAvailable && len(m.Vector) > 0 {
		vec := pgvector.NewVector(m.Vector)
		if _, err := s.db.ExecContext(ctx, `UPDATE memories SET embedding = $1 WHERE id = $2`, vec, m.ID); err != nil {
			return fmt.Errorf("postgres: append embedding: %w", err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID, id string) (*types.Memory, error) {
	const q = `
		SELECT id, user_id, text, chunk, metadata, hash, created_at, updated_at, COALESCE(superseded_by, '')
		FROM memories WHERE user_id = $1 AND id = $2
	`
	row := s.db.QueryRowContext(ctx, q, userID, id)
	m, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get: %w", err)
	}
	return m, nil
}

func (s *Store) Update(ctx context.Context, userID string, m *types.Memory) error {
	metaJSON, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal metadata: %w", err)
	}
	const q = `
		UPDATE memories SET text = $1, chunk = $2, metadata = $3, hash = $4, updated_at = $5
		WHERE user_id = $6 AND id = $7
	`
	res, err := s.db.ExecContext(ctx, q, m.Memory, m.Chunk, metaJSON, m.Hash, m.UpdatedAt, userID, m.ID)
	if err != nil {
		return fmt.Errorf("postgres: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}

	if s.pgvectorAvailable && len(m.Vector) > 0 {
		vec := pgvector.NewVector(m.Vector)
		if _, err := s.db.ExecContext(ctx, `UPDATE memories SET embedding = $1 WHERE id = $2`, vec, m.ID); err != nil {
			return fmt.Errorf("postgres: update embedding: %w", err)
		}
	}
	return nil
}

func (s *Store) Retire(ctx context.Context, userID, id, by string) error {
	const q = `
		UPDATE memories SET superseded_by = $1, updated_at = $2
		WHERE user_id = $3 AND id = $4
	`
	res, err := s.db.ExecContext(ctx, q, by, time.Now().UTC(), userID, id)
	if err != nil {
		return fmt.Errorf("postgres: retire: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// No row matched; Get reports ErrNotFound (or the lookup error).
		if _, err := s.Get(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("postgres: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListByType(ctx context.Context, userID string, factType types.FactType) ([]*types.Memory, error) {
	const q = `
		SELECT id, user_id, text, chunk, metadata, hash, created_at, updated_at, COALESCE(superseded_by, '')
		FROM memories
		WHERE user_id = $1 AND superseded_by IS NULL AND metadata->>'type' = $2
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, q, userID, string(factType))
	if err != nil {
		return nil, fmt.Errorf("postgres: list by type: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *Store) List(ctx context.Context, userID string, includeSuperseded bool, limit int) ([]*types.Memory, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
		SELECT id, user_id, text, chunk, metadata, hash, created_at, updated_at, COALESCE(superseded_by, '')
		FROM memories WHERE user_id = $1
	`
	if !includeSuperseded {
		q += " AND superseded_by IS NULL"
	}
	q += " ORDER BY updated_at DESC LIMIT $2"

	rows, err := s.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *Store) Search(ctx context.Context, userID string, vector []float32, opts storage.SearchOptions) ([]*types.Memory, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = types.DefaultSearchLimit
	}

	if !s.pgvectorAvailable || len(vector) == 0 {
		return s.searchByRecency(ctx, userID, opts, limit)
	}

	vec := pgvector.NewVector(vector)
	q := `
		SELECT id, user_id, text, chunk, metadata, hash, created_at, updated_at, COALESCE(superseded_by, ''),
		       embedding, embedding <=> $1 AS distance
		FROM memories
		WHERE user_id = $2 AND superseded_by IS NULL AND embedding IS NOT NULL
	`
	args := []interface{}{vec, userID}
	if opts.TypeFilter != "" {
		args = append(args, string(opts.TypeFilter))
		q += fmt.Sprintf(" AND metadata->>'type' = $%d", len(args))
	}
	if opts.ExcludeID != "" {
		args = append(args, opts.ExcludeID)
		q += fmt.Sprintf(" AND id != $%d", len(args))
	}
	q += " ORDER BY distance ASC LIMIT $" + fmt.Sprint(len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search: %w", err)
	}
	defer rows.Close()

	var out []*types.Memory
	for rows.Next() {
		var m types.Memory
		var metaJSON []byte
		var supersededBy string
		var embedding pgvector.Vector
		var distance float64
		if err := rows.Scan(&m.ID, &m.UserID, &m.Memory, &m.Chunk, &metaJSON, &m.Hash, &m.CreatedAt, &m.UpdatedAt, &supersededBy, &embedding, &distance); err != nil {
			return nil, fmt.Errorf("postgres: search scan: %w", err)
		}
		if opts.Threshold > 0 && (1-distance) < opts.Threshold {
			continue
		}
		m.SupersededBy = supersededBy
		m.Vector = embedding.Slice()
		if err := json.Unmarshal(metaJSON, &m.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: search unmarshal metadata: %w", err)
		}
		out = append(out, &m)
	}
	return out, nil
}

func (s *Store) searchByRecency(ctx context.Context, userID string, opts storage.SearchOptions, limit int) ([]*types.Memory, error) {
	if opts.Threshold > 0 {
		// Without distances no row can be shown to clear the threshold.
		return nil, nil
	}
	q := `
		SELECT id, user_id, text, chunk, metadata, hash, created_at, updated_at, COALESCE(superseded_by, '')
		FROM memories WHERE user_id = $1 AND superseded_by IS NULL
	`
	args := []interface{}{userID}
	if opts.TypeFilter != "" {
		args = append(args, string(opts.TypeFilter))
		q += fmt.Sprintf(" AND metadata->>'type' = $%d", len(args))
	}
	if opts.ExcludeID != "" {
		args = append(args, opts.ExcludeID)
		q += fmt.Sprintf(" AND id != $%d", len(args))
	}
	q += " ORDER BY created_at DESC LIMIT $" + fmt.Sprint(len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search fallback: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row rowScanner) (*types.Memory, error) {
	var m types.Memory
	var metaJSON []byte
	var supersededBy string
	if err := row.Scan(&m.ID, &m.UserID, &m.Memory, &m.Chunk, &metaJSON, &m.Hash, &m.CreatedAt, &m.UpdatedAt, &supersededBy); err != nil {
		return nil, err
	}
	m.SupersededBy = supersededBy
	if err := json.Unmarshal(metaJSON, &m.Metadata); err != nil {
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
