// Package ttcross implements minimization of black-box functions by
// tensor-train cross approximation. The search box is discretized into a
// grid, viewed as an implicit tensor of objective values, and alternating
// maxvol sweeps over the tensor modes pick the index sets to probe. The
// minimum over all probed entries is returned; the number of objective
// evaluations is bounded by the configured budget.
package ttcross

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/crossdev/ttserve/internal/optimization"
)

const defaultMaxSweeps = 64

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger attaches a logger for per-sweep progress output. Progress
// is only logged for runs that ask for it via RunConfig.WithLog.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Optimizer) { o.logger = logger }
}

// WithEvalHook registers a callback invoked with the size of every
// evaluated batch, e.g. to feed an evaluation counter metric.
func WithEvalHook(hook func(n int)) Option {
	return func(o *Optimizer) { o.hook = hook }
}

// WithMaxSweeps caps the number of full left-right sweep passes.
func WithMaxSweeps(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.maxSweeps = n
		}
	}
}

// Optimizer is a TT-cross minimizer. It is stateless across runs and
// safe for concurrent use; all per-run state lives on the stack of
// Minimize.
type Optimizer struct {
	logger    *zap.Logger
	hook      func(int)
	maxSweeps int
}

// New creates a TT-cross optimizer.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		logger:    zap.NewNop(),
		maxSweeps: defaultMaxSweeps,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var _ optimization.Optimizer = (*Optimizer)(nil)

// Minimize runs cross-approximation sweeps until the evaluation budget
// is spent, the sweeps stop consuming budget (everything worth probing
// is cached), the sweep cap is reached, or ctx is cancelled.
func (o *Optimizer) Minimize(ctx context.Context, cfg optimization.RunConfig) (*optimization.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, err := fromRunConfig(cfg)
	if err != nil {
		return nil, err
	}

	modes := grid.Modes()
	nModes := len(modes)
	ev := newEvaluator(cfg.Objective, grid, cfg.Evals, cfg.WithCache, o.hook)
	rng := rand.New(rand.NewSource(cfg.Seed))

	// left[k] holds index prefixes over modes [0,k); right[k] holds
	// suffixes over modes [k,nModes). The boundary sets are the single
	// empty tuple, the interior right sets start out random.
	left := make([][][]int, nModes+1)
	right := make([][][]int, nModes+1)
	left[0] = [][]int{{}}
	right[nModes] = [][]int{{}}
	for k := 1; k < nModes; k++ {
		right[k] = randomSuffixes(rng, modes[k:], cfg.Rank)
	}

	start := time.Now()
	sweeps := 0
	budgetOut := false

sweeping:
	for sweeps < o.maxSweeps && !budgetOut {
		usedBefore := ev.used

		for k := 0; k < nModes; k++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			next, err := o.sweepLeft(ev, modes, left[k], k, right[k+1])
			if errors.Is(err, errBudgetExhausted) {
				budgetOut = true
				break sweeping
			}
			if err != nil {
				return nil, err
			}
			left[k+1] = next
		}

		for k := nModes - 1; k >= 0; k-- {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			next, err := o.sweepRight(ev, modes, left[k], k, right[k+1])
			if errors.Is(err, errBudgetExhausted) {
				budgetOut = true
				break sweeping
			}
			if err != nil {
				return nil, err
			}
			right[k] = next
		}

		sweeps++
		if cfg.WithLog {
			o.logger.Info("sweep complete",
				zap.String("name", cfg.Name),
				zap.Int("sweep", sweeps),
				zap.Int("evals", ev.used),
				zap.Int("cache_hits", ev.hits),
				zap.Float64("y_min", ev.bestVal),
			)
		}
		if ev.used == usedBefore {
			// The cache answered the entire sweep; further passes
			// would revisit the same entries.
			break
		}
	}

	point, value, ok := ev.best()
	if !ok {
		return nil, optimization.NewErrorf("no objective evaluation completed within the budget").WithComponent("ttcross")
	}

	res := &optimization.Result{
		BestPoint:   point,
		BestValue:   value,
		Evaluations: ev.used,
		Sweeps:      sweeps,
		Elapsed:     time.Since(start),
	}
	res.Report = buildReport(cfg, grid, res)
	if cfg.WithLog {
		o.logger.Info("minimization finished", zap.String("report", res.Report), zap.Duration("elapsed", res.Elapsed))
	}
	return res, nil
}

// sweepLeft processes core k in the left-to-right pass: it evaluates the
// cross of the incoming prefixes, mode k's full range, and the suffixes
// behind the core, then keeps the prefix rows maxvol selects.
func (o *Optimizer) sweepLeft(ev *evaluator, modes []int, leftSet [][]int, k int, rightSet [][]int) ([][]int, error) {
	nk := modes[k]
	rows := len(leftSet) * nk
	cols := len(rightSet)

	idxs := make([][]int, 0, rows*cols)
	for _, li := range leftSet {
		for j := 0; j < nk; j++ {
			for _, ri := range rightSet {
				idxs = append(idxs, joinIndex(li, j, ri))
			}
		}
	}

	vals, err := ev.evalBatch(idxs)
	if err != nil {
		return nil, err
	}

	var sel []int
	if rows <= cols {
		sel = firstN(rows)
	} else {
		A := mat.NewDense(rows, cols, emphasizeMinima(vals, ev.bestVal))
		if sel, err = maxvol(A, maxvolTol, maxvolMaxIters); err != nil {
			return nil, err
		}
	}

	next := make([][]int, len(sel))
	for i, s := range sel {
		li, j := s/nk, s%nk
		next[i] = joinIndex(leftSet[li], j, nil)
	}
	return next, nil
}

// sweepRight processes core k in the right-to-left pass, selecting the
// suffix columns instead.
func (o *Optimizer) sweepRight(ev *evaluator, modes []int, leftSet [][]int, k int, rightSet [][]int) ([][]int, error) {
	nk := modes[k]
	rows := len(leftSet)
	cols := nk * len(rightSet)

	idxs := make([][]int, 0, rows*cols)
	for _, li := range leftSet {
		for j := 0; j < nk; j++ {
			for _, ri := range rightSet {
				idxs = append(idxs, joinIndex(li, j, ri))
			}
		}
	}

	vals, err := ev.evalBatch(idxs)
	if err != nil {
		return nil, err
	}

	var sel []int
	if cols <= rows {
		sel = firstN(cols)
	} else {
		A := mat.NewDense(rows, cols, emphasizeMinima(vals, ev.bestVal))
		var At mat.Dense
		At.CloneFrom(A.T())
		if sel, err = maxvol(&At, maxvolTol, maxvolMaxIters); err != nil {
			return nil, err
		}
	}

	nr := len(rightSet)
	next := make([][]int, len(sel))
	for i, s := range sel {
		j, ri := s/nr, s%nr
		next[i] = joinIndex(nil, j, rightSet[ri])
	}
	return next, nil
}

// emphasizeMinima maps objective values through the monotone transform
// pi/2 - atan(f - yBest), so entries near the current minimum get the
// largest magnitude. maxvol then steers the index sets toward minima
// instead of toward large |f|.
func emphasizeMinima(vals []float64, yBest float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = math.Pi/2 - math.Atan(v-yBest)
	}
	return out
}

// joinIndex concatenates prefix + mode value + suffix into one
// multi-index.
func joinIndex(prefix []int, j int, suffix []int) []int {
	idx := make([]int, 0, len(prefix)+1+len(suffix))
	idx = append(idx, prefix...)
	idx = append(idx, j)
	idx = append(idx, suffix...)
	return idx
}

// randomSuffixes draws up to size distinct random suffixes over the
// given modes.
func randomSuffixes(rng *rand.Rand, modes []int, size int) [][]int {
	seen := make(map[string]struct{}, size)
	out := make([][]int, 0, size)
	var keyBuf []byte

	// Bounded attempts: tiny grids can hold fewer than size distinct
	// suffixes.
	for attempt := 0; attempt < size*16 && len(out) < size; attempt++ {
		s := make([]int, len(modes))
		keyBuf = keyBuf[:0]
		for i, m := range modes {
			s[i] = rng.Intn(m)
			keyBuf = binary.AppendUvarint(keyBuf, uint64(s[i]))
		}
		if _, dup := seen[string(keyBuf)]; dup {
			continue
		}
		seen[string(keyBuf)] = struct{}{}
		out = append(out, s)
	}
	return out
}

func firstN(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}
