package engine

import (
	"context"
	"testing"

	"github.com/prosperitypirate/opencode-memory/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersioner_RetiresClassifiedCandidate(t *testing.T) {
	store := newTestSQLiteStore(t)
	old := insertMemory(t, store, "u1", "we use Postgres", []float32{1, 0, 0, 0}, types.TypeArchitecture)

	chat := &fakeChat{responses: []string{`["` + old.ID + `"]`}}
	ex := NewExtractor(chat, 0)
	v := NewVersioner(store, ex)

	inserted := insertMemory(t, store, "u1", "we use MySQL now", []float32{0.99, 0.1, 0, 0}, types.TypeArchitecture)
	v.Apply(context.Background(), inserted)

	got, err := store.Get(context.Background(), "u1", old.ID)
	require.NoError(t, err)
	assert.Equal(t, inserted.ID, got.SupersededBy)
	assert.False(t, got.Live())
}

func TestVersioner_SkipsVersioningSkipTypes(t *testing.T) {
	store := newTestSQLiteStore(t)
	old := insertMemory(t, store, "u1", "did X today", []float32{1, 0, 0, 0}, types.TypeProgress)

	chat := &fakeChat{responses: []string{`["` + old.ID + `"]`}}
	ex := NewExtractor(chat, 0)
	v := NewVersioner(store, ex)

	inserted := insertMemory(t, store, "u1", "did Y today", []float32{0.99, 0.1, 0, 0}, types.TypeProgress)
	v.Apply(context.Background(), inserted)

	got, err := store.Get(context.Background(), "u1", old.ID)
	require.NoError(t, err)
	assert.True(t, got.Live())
	assert.Empty(t, chat.calls)
}

func TestVersioner_RetirementNotifiesSink(t *testing.T) {
	store := newTestSQLiteStore(t)
	old := insertMemory(t, store, "u1", "we use Postgres", []float32{1, 0, 0, 0}, types.TypeArchitecture)

	chat := &fakeChat{responses: []string{`["` + old.ID + `"]`}}
	ex := NewExtractor(chat, 0)
	sink := &fakeSink{}
	v := NewVersionerWithLimits(store, ex, types.DefaultLimits(), sink)

	inserted := insertMemory(t, store, "u1", "we use MySQL now", []float32{0.99, 0.1, 0, 0}, types.TypeArchitecture)
	v.Apply(context.Background(), inserted)

	require.Len(t, sink.events, 1)
	assert.Equal(t, EventRETIRE, sink.events[0].event)
	assert.Equal(t, old.ID, sink.events[0].id)
}

func TestVersioner_NoCandidatesWithinRadiusRetiresNothing(t *testing.T) {
	store := newTestSQLiteStore(t)
	insertMemory(t, store, "u1", "unrelated fact", []float32{0, 1, 0, 0}, types.TypeArchitecture)

	chat := &fakeChat{}
	ex := NewExtractor(chat, 0)
	v := NewVersioner(store, ex)

	inserted := insertMemory(t, store, "u1", "we use MySQL now", []float32{1, 0, 0, 0}, types.TypeArchitecture)
	v.Apply(context.Background(), inserted)

	assert.Empty(t, chat.calls)
}
