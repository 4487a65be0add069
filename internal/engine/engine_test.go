package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/prosperitypirate/opencode-memory/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Ingest_InsertsNewFact(t *testing.T) {
	store := newTestSQLiteStore(t)
	chat := &fakeChat{responses: []string{
		`[{"memory": "uses bun not npm", "type": "preference"}]`,
	}}
	embed := &fakeEmbed{}
	e := New(store, chat, embed, 0)

	results, err := e.Ingest(context.Background(), "u1", []Message{
		{Role: "user", Content: "we use bun not npm"},
	}, types.Metadata{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, EventADD, results[0].Event)

	got, err := store.Get(context.Background(), "u1", results[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "uses bun not npm", got.Memory)
	assert.Equal(t, types.TypePreference, got.Type())
}

func TestEngine_Ingest_UpdatesDuplicateFact(t *testing.T) {
	store := newTestSQLiteStore(t)
	sharedVector := []float32{1, 0, 0, 0}
	embed := &fakeEmbed{overrides: map[string][]float32{
		"uses bun not npm": sharedVector,
		"definitely uses bun, not npm, confirmed": sharedVector,
	}}

	chatFirst := &fakeChat{responses: []string{`[{"memory": "uses bun not npm", "type": "preference"}]`}}
	e := New(store, chatFirst, embed, 0)
	first, err := e.Ingest(context.Background(), "u1", []Message{{Role: "user", Content: "a"}}, types.Metadata{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, EventADD, first[0].Event)

	chatSecond := &fakeChat{responses: []string{`[{"memory": "definitely uses bun, not npm, confirmed", "type": "preference"}]`}}
	e2 := New(store, chatSecond, embed, 0)
	second, err := e2.Ingest(context.Background(), "u1", []Message{{Role: "user", Content: "b"}}, types.Metadata{})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, EventUPDATE, second[0].Event)
	assert.Equal(t, first[0].ID, second[0].ID)

	got, err := store.Get(context.Background(), "u1", first[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "definitely uses bun, not npm, confirmed", got.Memory)
	assert.Equal(t, FlattenMessages([]Message{{Role: "user", Content: "b"}}), got.Chunk)
	assert.NotEmpty(t, got.Hash)
	assert.NotEqual(t, hashText("uses bun not npm"), got.Hash)
}

func TestEngine_Ingest_CallerMetadataNeverOverridesType(t *testing.T) {
	store := newTestSQLiteStore(t)
	chat := &fakeChat{responses: []string{`[{"memory": "some fact", "type": "architecture"}]`}}
	e := New(store, chat, &fakeEmbed{}, 0)

	results, err := e.Ingest(context.Background(), "u1", []Message{{Role: "user", Content: "x"}}, types.Metadata{"type": "preference", "source": "cli"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	got, err := store.Get(context.Background(), "u1", results[0].ID)
	require.NoError(t, err)
	assert.Equal(t, types.TypeArchitecture, got.Type())
	assert.Equal(t, "cli", got.Metadata["source"])
}

func TestEngine_Ingest_PartialBatchAbortsOnFirstError(t *testing.T) {
	store := newTestSQLiteStore(t)
	chat := &fakeChat{responses: []string{
		`[{"memory": "fact one", "type": "preference"}, {"memory": "fact two", "type": "preference"}]`,
	}}
	embed := &fakeEmbed{err: errors.New("embed unavailable")}
	e := New(store, chat, embed, 0)

	results, err := e.Ingest(context.Background(), "u1", []Message{{Role: "user", Content: "x"}}, types.Metadata{})
	require.Error(t, err)
	assert.Empty(t, results)
}

func TestEngine_Search_FindsIngestedFact(t *testing.T) {
	store := newTestSQLiteStore(t)
	vec := []float32{1, 0, 0, 0}
	embed := &fakeEmbed{overrides: map[string][]float32{
		"uses bun not npm": vec,
		"what tool":        vec,
	}}
	chat := &fakeChat{responses: []string{`[{"memory": "uses bun not npm", "type": "preference"}]`}}
	e := New(store, chat, embed, 0)

	_, err := e.Ingest(context.Background(), "u1", []Message{{Role: "user", Content: "x"}}, types.Metadata{})
	require.NoError(t, err)

	results, err := e.Search(context.Background(), "u1", "what tool", SearchOptions{Limit: 5, Threshold: 0.1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "uses bun not npm", results[0].Memory)
}
