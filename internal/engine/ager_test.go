package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prosperitypirate/opencode-memory/internal/storage"
	"github.com/prosperitypirate/opencode-memory/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAger_CollapseProgressDeletesOlderRows(t *testing.T) {
	store := newTestSQLiteStore(t)
	first := insertMemory(t, store, "u1", "did A", []float32{1, 0, 0, 0}, types.TypeProgress)
	second := insertMemory(t, store, "u1", "did B", []float32{0, 1, 0, 0}, types.TypeProgress)

	ager := NewAger(store, NewExtractor(&fakeChat{}, 0), NewEmbedder(&fakeEmbed{}, 0))
	ager.Apply(context.Background(), second)

	_, err := store.Get(context.Background(), "u1", first.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := store.Get(context.Background(), "u1", second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestAger_CollapseProgressNotifiesSink(t *testing.T) {
	store := newTestSQLiteStore(t)
	first := insertMemory(t, store, "u1", "did A", []float32{1, 0, 0, 0}, types.TypeProgress)
	second := insertMemory(t, store, "u1", "did B", []float32{0, 1, 0, 0}, types.TypeProgress)

	sink := &fakeSink{}
	ager := NewAgerWithSink(store, NewExtractor(&fakeChat{}, 0), NewEmbedder(&fakeEmbed{}, 0), types.DefaultLimits(), sink)
	ager.Apply(context.Background(), second)

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventDELETE, sink.events[0].event)
	assert.Equal(t, first.ID, sink.events[0].id)
}

func TestAger_AgeSessionSummaries_CondensesOldestWhenOverWindow(t *testing.T) {
	store := newTestSQLiteStore(t)
	base := time.Now().UTC().Add(-10 * time.Hour)
	var rows []*types.Memory
	for i := 0; i < types.MaxSessionSummaries; i++ {
		m := insertMemoryAt(t, store, "u1", fmt.Sprintf("summary-%d", i), []float32{float32(i), 0, 0, 0}, types.TypeSessionSummary, base.Add(time.Duration(i)*time.Hour))
		rows = append(rows, m)
	}
	oldest := rows[0]

	chat := &fakeChat{responses: []string{`[{"memory": "condensed pattern", "type": "learned-pattern"}]`}}
	ager := NewAger(store, NewExtractor(chat, 0), NewEmbedder(&fakeEmbed{}, 0))

	newest := insertMemoryAt(t, store, "u1", "summary-new", []float32{9, 0, 0, 0}, types.TypeSessionSummary, base.Add(time.Duration(types.MaxSessionSummaries)*time.Hour))

	ager.Apply(context.Background(), newest)

	live, err := store.ListByType(context.Background(), "u1", types.TypeSessionSummary)
	require.NoError(t, err)
	for _, r := range live {
		assert.NotEqual(t, oldest.ID, r.ID)
	}

	patterns, err := store.ListByType(context.Background(), "u1", types.TypeLearnedPattern)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, oldest.ID, patterns[0].Metadata.CondensedFrom())
}

func TestAger_AgeSessionSummaries_NotifiesSinkOnCondenseAndDelete(t *testing.T) {
	store := newTestSQLiteStore(t)
	base := time.Now().UTC().Add(-10 * time.Hour)
	var rows []*types.Memory
	for i := 0; i < types.MaxSessionSummaries; i++ {
		m := insertMemoryAt(t, store, "u1", fmt.Sprintf("summary-%d", i), []float32{float32(i), 0, 0, 0}, types.TypeSessionSummary, base.Add(time.Duration(i)*time.Hour))
		rows = append(rows, m)
	}
	oldest := rows[0]

	chat := &fakeChat{responses: []string{`[{"memory": "condensed pattern", "type": "learned-pattern"}]`}}
	sink := &fakeSink{}
	ager := NewAgerWithSink(store, NewExtractor(chat, 0), NewEmbedder(&fakeEmbed{}, 0), types.DefaultLimits(), sink)

	newest := insertMemoryAt(t, store, "u1", "summary-new", []float32{9, 0, 0, 0}, types.TypeSessionSummary, base.Add(time.Duration(types.MaxSessionSummaries)*time.Hour))
	ager.Apply(context.Background(), newest)

	require.Len(t, sink.events, 2)
	assert.Equal(t, EventCONDENSE, sink.events[0].event)
	assert.Equal(t, EventDELETE, sink.events[1].event)
	assert.Equal(t, oldest.ID, sink.events[1].id)
}

func TestAger_AgeSessionSummaries_PreservesOldestWhenCondensationFails(t *testing.T) {
	store := newTestSQLiteStore(t)
	base := time.Now().UTC().Add(-10 * time.Hour)
	var rows []*types.Memory
	for i := 0; i < types.MaxSessionSummaries; i++ {
		m := insertMemoryAt(t, store, "u1", fmt.Sprintf("summary-%d", i), []float32{float32(i), 0, 0, 0}, types.TypeSessionSummary, base.Add(time.Duration(i)*time.Hour))
		rows = append(rows, m)
	}
	oldest := rows[0]

	chat := &fakeChat{} // no scripted response -> Condense's internal call errors
	ager := NewAger(store, NewExtractor(chat, 0), NewEmbedder(&fakeEmbed{}, 0))

	newest := insertMemoryAt(t, store, "u1", "summary-new", []float32{9, 0, 0, 0}, types.TypeSessionSummary, base.Add(time.Duration(types.MaxSessionSummaries)*time.Hour))

	ager.Apply(context.Background(), newest)

	got, err := store.Get(context.Background(), "u1", oldest.ID)
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, got.ID)
}
