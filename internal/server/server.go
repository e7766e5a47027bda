// Package server implements the HTTP surface of the TT-cross
// optimization service: the synchronous /optimize contract and the
// asynchronous job API layered over a bounded worker pool.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/crossdev/ttserve/internal/config"
	"github.com/crossdev/ttserve/internal/logging"
	"github.com/crossdev/ttserve/internal/metrics"
	"github.com/crossdev/ttserve/internal/optimization"
	"github.com/crossdev/ttserve/internal/optimization/objectives"
	"github.com/crossdev/ttserve/internal/optimization/ttcross"
)

// Server wires the HTTP handlers to the job manager and worker pool.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	jobs      *JobManager
	pool      *workerPool
	closeOnce sync.Once
}

// NewServer creates a server instance. The optimizer, job manager, and
// worker pool live for the whole process.
func NewServer(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *Server {
	opt := ttcross.New(
		ttcross.WithLogger(logger.Named("ttcross")),
		ttcross.WithEvalHook(func(n int) { m.Evaluations.Add(float64(n)) }),
	)

	jm := NewJobManager()
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		jobs:    jm,
		pool:    newWorkerPool(cfg.Optimization.WorkerCount, opt, jm, logger, m),
	}
}

// RegisterRoutes mounts the service routes on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	// Original synchronous contract.
	r.Post("/optimize", s.handleOptimize)

	// Asynchronous job API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/jobs", s.handleSubmitJob)
		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Delete("/jobs/{id}", s.handleCancelJob)
	})
}

// Close cancels outstanding runs and stops the worker pool. It is safe
// to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.jobs.CancelAll()
		s.pool.Close()
	})
	return nil
}

// OptimizeRequest is the request body for /optimize and /api/v1/jobs.
// Every field is optional; absent fields keep the configured defaults.
type OptimizeRequest struct {
	Function   *string  `json:"function"`
	Dimensions *int     `json:"dimensions"`
	LowerBound *float64 `json:"lower_bound"`
	UpperBound *float64 `json:"upper_bound"`
	GridSize   *int     `json:"grid_size"`
	GridBase   *int     `json:"grid_base"`
	GridPower  *int     `json:"grid_power"`
	Evals      *int     `json:"evals"`
	Rank       *int     `json:"rank"`
	Seed       *int64   `json:"seed"`
}

// decodeRequest parses the body. An empty body is a valid request that
// keeps all defaults.
func decodeRequest(r *http.Request) (*OptimizeRequest, error) {
	req := &OptimizeRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err == io.EOF {
		return req, nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// buildRun resolves the request overrides against the configured
// defaults into a validated run configuration.
func (s *Server) buildRun(req *OptimizeRequest) (optimization.RunConfig, RunParams, error) {
	defaults := &s.cfg.Optimization
	params := RunParams{
		Function:   defaults.Function,
		Dimensions: defaults.Dimensions,
		LowerBound: defaults.LowerBound,
		UpperBound: defaults.UpperBound,
		GridSize:   defaults.GridSize,
		GridBase:   defaults.GridBase,
		GridPower:  defaults.GridPower,
		Evals:      defaults.Evals,
		Rank:       defaults.Rank,
		Seed:       defaults.Seed,
	}

	if req.Function != nil {
		params.Function = *req.Function
	}
	if req.Dimensions != nil {
		params.Dimensions = *req.Dimensions
	}
	if req.LowerBound != nil {
		params.LowerBound = *req.LowerBound
	}
	if req.UpperBound != nil {
		params.UpperBound = *req.UpperBound
	}
	if req.GridSize != nil {
		params.GridSize = *req.GridSize
	}
	if req.GridBase != nil {
		params.GridBase = *req.GridBase
	}
	if req.GridPower != nil {
		params.GridPower = *req.GridPower
	}
	if req.Evals != nil {
		params.Evals = *req.Evals
	}
	if req.Rank != nil {
		params.Rank = *req.Rank
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}

	bench, ok := objectives.Lookup(params.Function)
	if !ok {
		return optimization.RunConfig{}, params,
			optimization.WrapError(optimization.ErrInvalidConfig, "unknown function "+params.Function)
	}

	yOpt := bench.YOpt
	runCfg := optimization.RunConfig{
		Objective:  bench.Eval,
		Name:       bench.Name,
		Dimensions: params.Dimensions,
		LowerBound: params.LowerBound,
		UpperBound: params.UpperBound,
		GridSize:   params.GridSize,
		GridBase:   params.GridBase,
		GridPower:  params.GridPower,
		Evals:      params.Evals,
		Rank:       params.Rank,
		Seed:       params.Seed,
		YOpt:       &yOpt,
		WithLog:    defaults.WithLog,
		WithCache:  defaults.WithCache,
	}
	if params.Dimensions > 0 {
		runCfg.XOpt = bench.XOpt(params.Dimensions)
	}
	if err := runCfg.Validate(); err != nil {
		return optimization.RunConfig{}, params, err
	}
	return runCfg, params, nil
}

// handleOptimize runs an optimization to completion and answers with
// the textual report. The run executes on the worker pool so the total
// number of concurrent runs stays bounded.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	req, err := decodeRequest(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	runCfg, params, err := s.buildRun(req)
	if err != nil {
		s.respondBuildError(w, err)
		return
	}

	job := s.jobs.Create(params, runCfg)
	if err := s.pool.Submit(job); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	select {
	case <-job.Done():
	case <-time.After(s.cfg.Optimization.SyncWaitTimeout):
		logger.Warn("synchronous optimize timed out", zap.String("job_id", job.ID))
		s.respondError(w, http.StatusGatewayTimeout,
			"optimization did not finish in time; poll /api/v1/jobs/"+job.ID)
		return
	}

	snap, _ := s.jobs.Snapshot(job.ID)
	switch snap.State {
	case StateCompleted:
		s.respondJSON(w, http.StatusOK, map[string]string{
			"minimum_value": snap.Result.Report,
		})
	case StateCancelled:
		s.respondError(w, http.StatusInternalServerError, "optimization cancelled")
	default:
		s.respondError(w, http.StatusInternalServerError, snap.Err)
	}
}

// handleSubmitJob queues a run and returns immediately with its id.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	runCfg, params, err := s.buildRun(req)
	if err != nil {
		s.respondBuildError(w, err)
		return
	}

	job := s.jobs.Create(params, runCfg)
	if err := s.pool.Submit(job); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(StatePending),
	})
}

// jobStatusResponse is the body of GET /api/v1/jobs/{id}.
type jobStatusResponse struct {
	ID           string     `json:"job_id"`
	Status       JobState   `json:"status"`
	Params       RunParams  `json:"params"`
	Submitted    time.Time  `json:"submitted"`
	Started      *time.Time `json:"started,omitempty"`
	Finished     *time.Time `json:"finished,omitempty"`
	MinimumValue string     `json:"minimum_value,omitempty"`
	BestValue    *float64   `json:"best_value,omitempty"`
	Evaluations  int        `json:"evaluations,omitempty"`
	Error        string     `json:"error,omitempty"`
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := s.jobs.Snapshot(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "job not found: "+id)
		return
	}

	resp := jobStatusResponse{
		ID:        snap.ID,
		Status:    snap.State,
		Params:    snap.Params,
		Submitted: snap.Submitted,
		Started:   snap.Started,
		Finished:  snap.Finished,
		Error:     snap.Err,
	}
	if snap.Result != nil {
		resp.MinimumValue = snap.Result.Report
		best := snap.Result.BestValue
		resp.BestValue = &best
		resp.Evaluations = snap.Result.Evaluations
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.jobs.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "job not found: "+id)
		return
	}

	snap, _ := s.jobs.Snapshot(id)
	if snap.State.Terminal() {
		s.respondError(w, http.StatusConflict, "job is already "+string(snap.State))
		return
	}

	job.Cancel()
	s.logger.Info("job cancellation requested", zap.String("job_id", id))
	s.respondJSON(w, http.StatusOK, map[string]string{
		"job_id": id,
		"status": "cancellation requested",
	})
}

// respondBuildError maps run-configuration failures to 400 and
// everything else to 500.
func (s *Server) respondBuildError(w http.ResponseWriter, err error) {
	if errors.Is(err, optimization.ErrInvalidConfig) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, code int, msg string) {
	s.respondJSON(w, code, map[string]string{"error": msg})
}
