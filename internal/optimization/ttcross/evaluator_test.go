package ttcross

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sumObjective(X *mat.Dense) ([]float64, error) {
	rows, cols := X.Dims()
	y := make([]float64, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			y[i] += X.At(i, j)
		}
	}
	return y, nil
}

func testGrid(t *testing.T) *Grid {
	t.Helper()
	g, err := NewUniformGrid(2, 0, 3, 4) // grid points 0,1,2,3 per dimension
	require.NoError(t, err)
	return g
}

func TestEvaluatorComputesValues(t *testing.T) {
	ev := newEvaluator(sumObjective, testGrid(t), 100, true, nil)

	vals, err := ev.evalBatch([][]int{{0, 0}, {1, 2}, {3, 3}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 3, 6}, vals, 1e-12)
	assert.Equal(t, 3, ev.used)

	point, best, ok := ev.best()
	require.True(t, ok)
	assert.Equal(t, 0.0, best)
	assert.InDeltaSlice(t, []float64{0, 0}, point, 1e-12)
}

func TestEvaluatorCacheHits(t *testing.T) {
	calls := 0
	obj := func(X *mat.Dense) ([]float64, error) {
		rows, _ := X.Dims()
		calls += rows
		return sumObjective(X)
	}
	ev := newEvaluator(obj, testGrid(t), 100, true, nil)

	_, err := ev.evalBatch([][]int{{1, 1}, {2, 2}})
	require.NoError(t, err)
	vals, err := ev.evalBatch([][]int{{1, 1}, {2, 2}, {0, 3}})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{2, 4, 3}, vals, 1e-12)
	assert.Equal(t, 3, calls, "repeated indices must come from the cache")
	assert.Equal(t, 3, ev.used)
	assert.Equal(t, 2, ev.hits)
}

func TestEvaluatorWithoutCacheReevaluates(t *testing.T) {
	calls := 0
	obj := func(X *mat.Dense) ([]float64, error) {
		rows, _ := X.Dims()
		calls += rows
		return sumObjective(X)
	}
	ev := newEvaluator(obj, testGrid(t), 100, false, nil)

	_, err := ev.evalBatch([][]int{{1, 1}})
	require.NoError(t, err)
	_, err = ev.evalBatch([][]int{{1, 1}})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestEvaluatorBudgetTruncation(t *testing.T) {
	ev := newEvaluator(sumObjective, testGrid(t), 2, true, nil)

	_, err := ev.evalBatch([][]int{{3, 3}, {0, 1}, {0, 0}})
	assert.ErrorIs(t, err, errBudgetExhausted)
	assert.Equal(t, 2, ev.used, "only the remaining budget may be spent")

	// The points evaluated before the cut still count toward the best.
	_, best, ok := ev.best()
	require.True(t, ok)
	assert.Equal(t, 1.0, best)
}

func TestEvaluatorHook(t *testing.T) {
	total := 0
	ev := newEvaluator(sumObjective, testGrid(t), 100, true, func(n int) { total += n })

	_, err := ev.evalBatch([][]int{{0, 0}, {1, 1}})
	require.NoError(t, err)
	_, err = ev.evalBatch([][]int{{1, 1}, {2, 0}})
	require.NoError(t, err)

	assert.Equal(t, 3, total)
}
