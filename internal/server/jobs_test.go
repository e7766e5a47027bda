package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossdev/ttserve/internal/optimization"
)

func TestJobManagerLifecycle(t *testing.T) {
	jm := NewJobManager()

	params := RunParams{Function: "alpine", Dimensions: 4}
	job := jm.Create(params, optimization.RunConfig{})
	require.NotEmpty(t, job.ID)
	assert.Equal(t, StatePending, job.State)
	assert.False(t, job.Submitted.IsZero())

	got, ok := jm.Get(job.ID)
	require.True(t, ok)
	assert.Same(t, job, got)

	now := time.Now()
	require.NoError(t, jm.Update(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Started = &now
	}))

	snap, ok := jm.Snapshot(job.ID)
	require.True(t, ok)
	assert.Equal(t, StateRunning, snap.State)
	require.NotNil(t, snap.Started)

	// Snapshot is a copy: mutating it must not leak back.
	snap.State = StateFailed
	live, _ := jm.Snapshot(job.ID)
	assert.Equal(t, StateRunning, live.State)
}

func TestJobManagerUnknownID(t *testing.T) {
	jm := NewJobManager()

	_, ok := jm.Get("missing")
	assert.False(t, ok)
	_, ok = jm.Snapshot("missing")
	assert.False(t, ok)
	assert.Error(t, jm.Update("missing", func(j *Job) {}))
}

func TestJobStateTerminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateRunning.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateCancelled.Terminal())
}

func TestCancelAllCancelsPendingJobs(t *testing.T) {
	jm := NewJobManager()
	job := jm.Create(RunParams{}, optimization.RunConfig{})

	jm.CancelAll()
	assert.Error(t, job.ctx.Err(), "run context should be cancelled")
}

func TestCancelAllSkipsTerminalJobs(t *testing.T) {
	jm := NewJobManager()
	job := jm.Create(RunParams{}, optimization.RunConfig{})
	require.NoError(t, jm.Update(job.ID, func(j *Job) { j.State = StateCompleted }))

	jm.CancelAll()
	assert.NoError(t, job.ctx.Err())
}
