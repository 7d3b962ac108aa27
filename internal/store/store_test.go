package store

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csnp/qbom/internal/trace"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return s
}

func sampleTrace(t *testing.T, name, backend string, shots int) trace.Trace {
	t.Helper()

	circuit := trace.Circuit{NumQubits: 2, Depth: 3, Gates: trace.GateCounts{Total: 4}, Hash: trace.CircuitHash(name)}
	hw, err := trace.NewHardware("ibm", backend, 127, false)
	require.NoError(t, err)

	return trace.NewBuilder().
		AddCircuit(circuit).
		SetHardware(hw).
		SetExecution(trace.Execution{Shots: shots}).
		SetMetadata(name, "", nil).
		Build()
}

func TestStoreSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	tr := sampleTrace(t, "bell", "ibm_brisbane", 1024)

	path, err := s.Save(tr)
	require.NoError(t, err)
	assert.FileExists(t, path)

	loaded, err := s.Load(tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, loaded.ID)
	assert.Equal(t, tr.ContentHash(), loaded.ContentHash())
}

func TestStoreSaveRequiresID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Save(trace.Trace{})
	assert.Error(t, err)
}

func TestStoreLoadPartialID(t *testing.T) {
	s := newTestStore(t)
	tr := sampleTrace(t, "bell", "ibm_brisbane", 1024)
	_, err := s.Save(tr)
	require.NoError(t, err)

	// The ID suffix after the prefix is unique, so any distinctive chunk
	// resolves.
	partial := tr.ID[len(tr.ID)-6:]
	loaded, err := s.Load(partial)
	require.NoError(t, err)
	assert.Equal(t, tr.ID, loaded.ID)
}

func TestStoreLoadNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("qbom_deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Load("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreLoadAmbiguous(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Save(sampleTrace(t, "a", "ibm_brisbane", 100))
	require.NoError(t, err)
	_, err = s.Save(sampleTrace(t, "b", "ibm_brisbane", 100))
	require.NoError(t, err)

	// Every ID contains the prefix.
	_, err = s.Load("qbom")
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestStoreListNewestFirst(t *testing.T) {
	s := newTestStore(t)

	older := sampleTrace(t, "older", "ibm_brisbane", 100)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := sampleTrace(t, "newer", "ibm_brisbane", 100)

	_, err := s.Save(older)
	require.NoError(t, err)
	_, err = s.Save(newer)
	require.NoError(t, err)

	traces, err := s.List()
	require.NoError(t, err)
	require.Len(t, traces, 2)
	assert.Equal(t, newer.ID, traces[0].ID)
	assert.Equal(t, older.ID, traces[1].ID)
}

func TestStoreListSkipsCorruptFiles(t *testing.T) {
	s := newTestStore(t)
	tr := sampleTrace(t, "good", "ibm_brisbane", 100)
	_, err := s.Save(tr)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.Path("qbom_corrupt1"), []byte("{not json"), 0644))

	traces, err := s.List()
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, tr.ID, traces[0].ID)
}

func TestStoreDelete(t *testing.T) {
	s := newTestStore(t)
	tr := sampleTrace(t, "bell", "ibm_brisbane", 100)
	_, err := s.Save(tr)
	require.NoError(t, err)

	require.NoError(t, s.Delete(tr.ID))
	_, err = s.Load(tr.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(tr.ID), ErrNotFound)
}

func TestStoreCount(t *testing.T) {
	s := newTestStore(t)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = s.Save(sampleTrace(t, "a", "ibm_brisbane", 100))
	require.NoError(t, err)

	count, err = s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
