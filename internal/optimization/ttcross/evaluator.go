package ttcross

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/crossdev/ttserve/internal/optimization"
)

// errBudgetExhausted stops a sweep once the evaluation budget is spent.
// The best point found so far is still returned to the caller.
var errBudgetExhausted = errors.New("evaluation budget exhausted")

// evaluator runs the objective over batches of multi-indices while
// enforcing the evaluation budget, memoizing values when caching is
// enabled, and tracking the best point seen.
type evaluator struct {
	obj    optimization.Objective
	grid   *Grid
	budget int
	hook   func(n int) // called with the size of each evaluated batch

	cache map[string]float64 // nil when caching is disabled

	used    int
	hits    int
	bestVal float64
	bestIdx []int

	pool   matrixPool
	keyBuf []byte
}

func newEvaluator(obj optimization.Objective, grid *Grid, budget int, withCache bool, hook func(int)) *evaluator {
	e := &evaluator{
		obj:     obj,
		grid:    grid,
		budget:  budget,
		hook:    hook,
		bestVal: math.Inf(1),
	}
	if withCache {
		e.cache = make(map[string]float64)
	}
	return e
}

// evalBatch returns the objective values for the given multi-indices, in
// order. When the budget runs out mid-batch it evaluates what the budget
// still allows, updates the best point, and reports errBudgetExhausted;
// the partial values are not returned because the caller's matrix would
// be incomplete.
func (e *evaluator) evalBatch(idxs [][]int) ([]float64, error) {
	values := make([]float64, len(idxs))
	misses := make([]int, 0, len(idxs))

	for i, idx := range idxs {
		if e.cache != nil {
			if v, ok := e.cache[e.key(idx)]; ok {
				values[i] = v
				e.hits++
				continue
			}
		}
		misses = append(misses, i)
	}

	truncated := false
	if remaining := e.budget - e.used; len(misses) > remaining {
		misses = misses[:remaining]
		truncated = true
	}

	if len(misses) > 0 {
		X := e.pool.getDense(len(misses), e.grid.Dimensions())
		for r, i := range misses {
			e.grid.Point(idxs[i], X.RawRowView(r))
		}
		y, err := e.obj(X)
		e.pool.putDense(X)
		if err != nil {
			return nil, optimization.WrapError(err, "objective evaluation failed").WithComponent("ttcross")
		}
		if len(y) != len(misses) {
			return nil, optimization.NewErrorf("objective returned %d values for %d points", len(y), len(misses)).WithComponent("ttcross")
		}

		e.used += len(misses)
		if e.hook != nil {
			e.hook(len(misses))
		}
		for r, i := range misses {
			values[i] = y[r]
			if e.cache != nil {
				e.cache[e.key(idxs[i])] = y[r]
			}
			e.observe(idxs[i], y[r])
		}
	}

	if truncated {
		return nil, errBudgetExhausted
	}

	// Cached entries can still improve the best point when the cache
	// was warmed by a truncated batch.
	for i, idx := range idxs {
		e.observe(idx, values[i])
	}
	return values, nil
}

func (e *evaluator) observe(idx []int, v float64) {
	if v < e.bestVal {
		e.bestVal = v
		e.bestIdx = append(e.bestIdx[:0], idx...)
	}
}

// best returns the best point and value seen so far.
func (e *evaluator) best() ([]float64, float64, bool) {
	if e.bestIdx == nil {
		return nil, 0, false
	}
	return e.grid.Point(e.bestIdx, nil), e.bestVal, true
}

func (e *evaluator) key(idx []int) string {
	buf := e.keyBuf[:0]
	for _, i := range idx {
		buf = binary.AppendUvarint(buf, uint64(i))
	}
	e.keyBuf = buf
	return string(buf)
}
