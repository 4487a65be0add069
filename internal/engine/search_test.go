package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prosperitypirate/opencode-memory/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRanker_Search_OrdersByDescendingScore(t *testing.T) {
	store := newTestSQLiteStore(t)
	insertMemory(t, store, "u1", "uses bun not npm", []float32{1, 0, 0, 0}, types.TypePreference)
	insertMemory(t, store, "u1", "unrelated fact about cats", []float32{0.6, 0.8, 0, 0}, types.TypePreference)

	embed := &fakeEmbed{overrides: map[string][]float32{
		"what package manager": {1, 0, 0, 0},
	}}
	r := NewRanker(store, NewEmbedder(embed, 0))

	results, err := r.Search(context.Background(), "u1", "what package manager", SearchOptions{Limit: 5, Threshold: 0.1})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "uses bun not npm", results[0].Memory)
	assert.Equal(t, "unrelated fact about cats", results[1].Memory)
}

func TestRanker_Search_AppliesTypeFilter(t *testing.T) {
	store := newTestSQLiteStore(t)
	insertMemory(t, store, "u1", "uses bun not npm", []float32{1, 0, 0, 0}, types.TypePreference)
	insertMemory(t, store, "u1", "architecture is microservices", []float32{1, 0, 0, 0}, types.TypeArchitecture)

	embed := &fakeEmbed{overrides: map[string][]float32{"q": {1, 0, 0, 0}}}
	r := NewRanker(store, NewEmbedder(embed, 0))

	results, err := r.Search(context.Background(), "u1", "q", SearchOptions{Limit: 5, Threshold: 0, TypeFilter: types.TypeArchitecture})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "architecture is microservices", results[0].Memory)
}

func TestRanker_Search_RecencyBlendFavorsNewerRow(t *testing.T) {
	store := newTestSQLiteStore(t)
	now := time.Now().UTC()
	insertMemoryAt(t, store, "u1", "old session note", []float32{1, 0, 0, 0}, types.TypeSessionSummary, now.Add(-30*24*time.Hour))
	insertMemoryAt(t, store, "u1", "new session note", []float32{0.99, 0.1, 0, 0}, types.TypeSessionSummary, now)

	embed := &fakeEmbed{overrides: map[string][]float32{"q": {1, 0, 0, 0}}}
	r := NewRanker(store, NewEmbedder(embed, 0))

	results, err := r.Search(context.Background(), "u1", "q", SearchOptions{Limit: 5, Threshold: 0.1, RecencyWeight: 0.9})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "new session note", results[0].Memory)
}

func TestRanker_Search_ThresholdExcludesWeakMatches(t *testing.T) {
	store := newTestSQLiteStore(t)
	insertMemory(t, store, "u1", "uses bun not npm", []float32{1, 0, 0, 0}, types.TypePreference)
	insertMemory(t, store, "u1", "totally unrelated", []float32{0, 1, 0, 0}, types.TypePreference)

	embed := &fakeEmbed{overrides: map[string][]float32{"q": {1, 0, 0, 0}}}
	r := NewRanker(store, NewEmbedder(embed, 0))

	results, err := r.Search(context.Background(), "u1", "q", SearchOptions{Limit: 5, Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "uses bun not npm", results[0].Memory)
}
