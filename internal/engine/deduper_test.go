package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prosperitypirate/opencode-memory/internal/storage/sqlite"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func insertMemory(t *testing.T, store *sqlite.Store, userID, text string, vector []float32, factType types.FactType) *types.Memory {
	t.Helper()
	return insertMemoryAt(t, store, userID, text, vector, factType, time.Now().UTC())
}

func insertMemoryAt(t *testing.T, store *sqlite.Store, userID, text string, vector []float32, factType types.FactType, createdAt time.Time) *types.Memory {
	t.Helper()
	meta := types.Metadata{}
	meta.SetType(factType)
	m := &types.Memory{
		ID:        userID + "-" + text,
		UserID:    userID,
		Memory:    text,
		Vector:    vector,
		Metadata:  meta,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, store.Append(context.Background(), m))
	return m
}

func TestDeduper_FindsMatchWithinRadius(t *testing.T) {
	store := newTestSQLiteStore(t)
	vec := []float32{1, 0, 0, 0}
	insertMemory(t, store, "u1", "uses bun not npm", vec, types.TypePreference)

	d := NewDeduper(store)
	dup := d.FindDuplicate(context.Background(), "u1", vec, types.TypePreference)
	require.NotNil(t, dup)
}

func TestDeduper_NoMatchOutsideRadius(t *testing.T) {
	store := newTestSQLiteStore(t)
	insertMemory(t, store, "u1", "uses bun not npm", []float32{1, 0, 0, 0}, types.TypePreference)

	d := NewDeduper(store)
	dup := d.FindDuplicate(context.Background(), "u1", []float32{0, 1, 0, 0}, types.TypePreference)
	require.Nil(t, dup)
}

func TestDeduper_ScopedToUser(t *testing.T) {
	store := newTestSQLiteStore(t)
	vec := []float32{1, 0, 0, 0}
	insertMemory(t, store, "u1", "uses bun not npm", vec, types.TypePreference)

	d := NewDeduper(store)
	dup := d.FindDuplicate(context.Background(), "u2", vec, types.TypePreference)
	require.Nil(t, dup)
}
