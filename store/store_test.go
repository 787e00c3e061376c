package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskweave/taskweave/core"
)

func TestInMemoryStore_SaveAndGet(t *testing.T) {
	s := NewInMemoryStore()
	snap := core.NewProcessRun("input", []string{"a", "b"}).Snapshot()

	require.NoError(t, s.Save(snap))

	got, err := s.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, core.RunPending, got.Status)
	assert.Len(t, got.Phases, 2)
}

func TestInMemoryStore_SaveReplaces(t *testing.T) {
	s := NewInMemoryStore()
	run := core.NewProcessRun("input", []string{"a"})

	require.NoError(t, s.Save(run.Snapshot()))
	require.NoError(t, run.BeginPhase("a"))
	require.NoError(t, s.Save(run.Snapshot()))

	got, err := s.Get(run.ID())
	require.NoError(t, err)
	assert.Equal(t, core.RunRunning, got.Status)
}

func TestInMemoryStore_GetMissing(t *testing.T) {
	s := NewInMemoryStore()
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_SaveWithoutID(t *testing.T) {
	s := NewInMemoryStore()
	assert.Error(t, s.Save(core.Snapshot{}))
}

func TestInMemoryStore_List(t *testing.T) {
	s := NewInMemoryStore()
	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	first := core.NewProcessRun("x", []string{"a"}).Snapshot()
	second := core.NewProcessRun("y", []string{"a"}).Snapshot()
	require.NoError(t, s.Save(first))
	require.NoError(t, s.Save(second))

	ids, err = s.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
}
