package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crossdev/ttserve/internal/optimization"
)

// JobState represents the lifecycle state of an optimization job.
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// RunParams echoes the resolved run parameters of a job in status
// responses.
type RunParams struct {
	Function   string  `json:"function"`
	Dimensions int     `json:"dimensions"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	GridSize   int     `json:"grid_size,omitempty"`
	GridBase   int     `json:"grid_base,omitempty"`
	GridPower  int     `json:"grid_power,omitempty"`
	Evals      int     `json:"evals"`
	Rank       int     `json:"rank"`
	Seed       int64   `json:"seed"`
}

// Job tracks one optimization run from submission to completion.
// Mutations go through JobManager.Update; the done channel is closed
// exactly once when the job reaches a terminal state.
type Job struct {
	ID        string
	State     JobState
	Params    RunParams
	Submitted time.Time
	Started   *time.Time
	Finished  *time.Time
	Result    *optimization.Result
	Err       string

	runCfg optimization.RunConfig
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Done returns a channel closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel requests cancellation of the job's run.
func (j *Job) Cancel() { j.cancel() }

// JobManager owns the job table. All access is behind its lock.
type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobManager creates an empty job manager.
func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*Job)}
}

// Create registers a new pending job. The job's run context is detached
// from any request context: async jobs outlive the submitting request.
func (jm *JobManager) Create(params RunParams, runCfg optimization.RunConfig) *Job {
	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Params:    params,
		Submitted: time.Now(),
		runCfg:    runCfg,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	jm.mu.Lock()
	jm.jobs[job.ID] = job
	jm.mu.Unlock()
	return job
}

// Get returns the live job with the given id.
func (jm *JobManager) Get(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	job, ok := jm.jobs[id]
	return job, ok
}

// Snapshot returns a copy of the job's current state, safe to read
// without further locking.
func (jm *JobManager) Snapshot(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	job, ok := jm.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Update atomically mutates a job under the manager lock.
func (jm *JobManager) Update(id string, fn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	job, ok := jm.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	fn(job)
	return nil
}

// CancelAll cancels every non-terminal job. Used during shutdown.
func (jm *JobManager) CancelAll() {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	for _, job := range jm.jobs {
		if !job.State.Terminal() {
			job.cancel()
		}
	}
}
