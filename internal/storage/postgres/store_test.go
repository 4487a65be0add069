package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/internal/storage/postgres"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
)

// postgresTestDSN returns the DSN for the test database. If
// POSTGRES_TEST_DSN is not set, tests are skipped rather than failed, since
// they require a live Postgres instance with or without pgvector installed.
func postgresTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set; skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	store, err := postgres.New(postgresTestDSN(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleMemory(id, userID, text string, vector []float32) *types.Memory {
	now := time.Now().UTC()
	meta := types.Metadata{}
	meta.SetType(types.TypePreference)
	return &types.Memory{
		ID:        id,
		UserID:    userID,
		Memory:    text,
		Vector:    vector,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_AppendAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := sampleMemory("pg-mem-1", "pg-user-1", "uses rye not poetry", []float32{1, 0, 0})
	require.NoError(t, s.Append(ctx, m))
	t.Cleanup(func() { s.Delete(ctx, "pg-user-1", "pg-mem-1") })

	got, err := s.Get(ctx, "pg-user-1", "pg-mem-1")
	require.NoError(t, err)
	assert.Equal(t, "uses rye not poetry", got.Memory)
	assert.True(t, got.Live())
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "pg-user-1", "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_RetireIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, sampleMemory("pg-mem-2", "pg-user-1", "x", nil)))
	t.Cleanup(func() { s.Delete(ctx, "pg-user-1", "pg-mem-2") })

	require.NoError(t, s.Retire(ctx, "pg-user-1", "pg-mem-2", "pg-mem-3"))
	require.NoError(t, s.Retire(ctx, "pg-user-1", "pg-mem-2", "pg-mem-3"))

	got, err := s.Get(ctx, "pg-user-1", "pg-mem-2")
	require.NoError(t, err)
	assert.False(t, got.Live())
}

func TestStore_SearchExcludesRetiredRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, sampleMemory("pg-mem-4", "pg-user-1", "x", []float32{1, 0, 0})))
	t.Cleanup(func() { s.Delete(ctx, "pg-user-1", "pg-mem-4") })
	require.NoError(t, s.Retire(ctx, "pg-user-1", "pg-mem-4", "pg-mem-5"))

	results, err := s.Search(ctx, "pg-user-1", []float32{1, 0, 0}, storage.SearchOptions{Limit: 5})
	require.NoError(t, err)
	for _, m := range results {
		assert.NotEqual(t, "pg-mem-4", m.ID)
	}
}

func TestStore_UpdatePersistsChunkAndHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	m := sampleMemory("pg-mem-7", "pg-user-1", "old text", []float32{1, 0, 0})
	m.Chunk = "[user] old source text\n"
	m.Hash = "old-hash"
	require.NoError(t, s.Append(ctx, m))
	t.Cleanup(func() { s.Delete(ctx, "pg-user-1", "pg-mem-7") })

	m.Memory = "new text"
	m.Chunk = "[user] new source text\n"
	m.Hash = "new-hash"
	require.NoError(t, s.Update(ctx, "pg-user-1", m))

	got, err := s.Get(ctx, "pg-user-1", "pg-mem-7")
	require.NoError(t, err)
	assert.Equal(t, "new text", got.Memory)
	assert.Equal(t, "[user] new source text\n", got.Chunk)
	assert.Equal(t, "new-hash", got.Hash)
}

func TestStore_ListByType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, sampleMemory("pg-mem-6", "pg-user-1", "pref", nil)))
	t.Cleanup(func() { s.Delete(ctx, "pg-user-1", "pg-mem-6") })

	prefs, err := s.ListByType(ctx, "pg-user-1", types.TypePreference)
	require.NoError(t, err)
	found := false
	for _, m := range prefs {
		if m.ID == "pg-mem-6" {
			found = true
		}
	}
	assert.True(t, found)
}
