package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csnp/qbom/internal/store"
	"github.com/csnp/qbom/internal/trace"
)

type countingJob struct {
	runs int
	err  error
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Run() error {
	j.runs++
	return j.err
}

func TestAddJobValidatesSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
	assert.NoError(t, s.AddJob("0 3 * * *", &countingJob{}))
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())

	job := &countingJob{}
	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.runs)

	job.err = errors.New("boom")
	assert.Error(t, s.RunNow(job))
}

func TestReindexJobRepairsIndex(t *testing.T) {
	dataDir := t.TempDir()
	st, err := store.New(dataDir, zerolog.Nop())
	require.NoError(t, err)
	ix, err := store.OpenIndex(dataDir, zerolog.Nop())
	require.NoError(t, err)
	defer ix.Close()

	tr := trace.NewBuilder().
		AddCircuit(trace.Circuit{NumQubits: 2, Depth: 3, Hash: trace.CircuitHash("h")}).
		Build()
	_, err = st.Save(tr)
	require.NoError(t, err)

	// Saved to disk but never indexed.
	count, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	job := &ReindexJob{Store: st, Index: ix}
	require.NoError(t, job.Run())

	count, err = ix.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMaintenanceJobLeavesIndexUsable(t *testing.T) {
	dataDir := t.TempDir()
	st, err := store.New(dataDir, zerolog.Nop())
	require.NoError(t, err)
	ix, err := store.OpenIndex(dataDir, zerolog.Nop())
	require.NoError(t, err)
	defer ix.Close()

	for _, name := range []string{"a", "b", "c"} {
		tr := trace.NewBuilder().
			AddCircuit(trace.Circuit{NumQubits: 2, Depth: 3, Hash: trace.CircuitHash(name)}).
			Build()
		_, err = st.Save(tr)
		require.NoError(t, err)
	}
	require.NoError(t, ix.Reindex(st))

	job := &MaintenanceJob{Index: ix, Log: zerolog.Nop()}
	require.NoError(t, job.Run())

	// Checkpoint and vacuum must not lose indexed rows.
	count, err := ix.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
