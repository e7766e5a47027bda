package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossdev/ttserve/internal/metrics"
	"github.com/crossdev/ttserve/internal/optimization"
)

// errQueueFull is returned when the submission queue cannot take
// another job.
var errQueueFull = errors.New("job queue is full")

const jobQueueSize = 64

// workerPool runs optimization jobs on a fixed number of goroutines,
// bounding how many resource-heavy runs execute concurrently.
type workerPool struct {
	tasks   chan *Job
	wg      sync.WaitGroup
	opt     optimization.Optimizer
	jm      *JobManager
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func newWorkerPool(workers int, opt optimization.Optimizer, jm *JobManager, logger *zap.Logger, m *metrics.Metrics) *workerPool {
	p := &workerPool{
		tasks:   make(chan *Job, jobQueueSize),
		opt:     opt,
		jm:      jm,
		logger:  logger,
		metrics: m,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues a job for execution without blocking.
func (p *workerPool) Submit(job *Job) error {
	select {
	case p.tasks <- job:
		return nil
	default:
		return errQueueFull
	}
}

// Close stops accepting jobs and waits for the workers to drain.
// Pending runs should be cancelled first via JobManager.CancelAll.
func (p *workerPool) Close() {
	close(p.tasks)
	p.wg.Wait()
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for job := range p.tasks {
		p.run(job)
	}
}

func (p *workerPool) run(job *Job) {
	defer close(job.done)

	// Cancelled while still queued.
	if job.ctx.Err() != nil {
		p.finish(job, StateCancelled, nil, job.ctx.Err())
		return
	}

	now := time.Now()
	p.jm.Update(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Started = &now
	})
	p.metrics.RunsStarted.Inc()
	p.metrics.JobsInFlight.Inc()
	defer p.metrics.JobsInFlight.Dec()

	p.logger.Info("job started",
		zap.String("job_id", job.ID),
		zap.String("function", job.Params.Function),
		zap.Int("dimensions", job.Params.Dimensions),
		zap.Int("evals", job.Params.Evals),
	)

	res, err := p.opt.Minimize(job.ctx, job.runCfg)
	switch {
	case err == nil:
		p.finish(job, StateCompleted, res, nil)
	case errors.Is(err, context.Canceled):
		p.finish(job, StateCancelled, nil, err)
	default:
		p.finish(job, StateFailed, nil, err)
	}
}

func (p *workerPool) finish(job *Job, state JobState, res *optimization.Result, err error) {
	now := time.Now()
	p.jm.Update(job.ID, func(j *Job) {
		j.State = state
		j.Finished = &now
		j.Result = res
		if err != nil {
			j.Err = err.Error()
		}
	})

	switch state {
	case StateCompleted:
		p.metrics.RunsCompleted.Inc()
		p.metrics.RunDuration.Observe(res.Elapsed.Seconds())
		p.logger.Info("job completed",
			zap.String("job_id", job.ID),
			zap.String("report", res.Report),
			zap.Int("evaluations", res.Evaluations),
			zap.Duration("elapsed", res.Elapsed),
		)
	case StateCancelled:
		p.metrics.RunsCancelled.Inc()
		p.logger.Info("job cancelled", zap.String("job_id", job.ID))
	default:
		p.metrics.RunsFailed.Inc()
		p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}
