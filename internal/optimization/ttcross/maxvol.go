package ttcross

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/crossdev/ttserve/internal/optimization"
)

const (
	maxvolTol      = 1.05
	maxvolMaxIters = 100
)

// maxvol selects r rows of the m-by-r matrix A (m >= r) whose square
// submatrix has close to maximal volume. It starts from the pivot rows
// of a Gaussian elimination and then swaps rows while some coefficient
// of A·A_hat^-1 exceeds the tolerance. The returned row indices are in
// the order matching the columns of the square submatrix.
func maxvol(A *mat.Dense, tol float64, maxIters int) ([]int, error) {
	m, r := A.Dims()
	if m < r {
		return nil, optimization.NewErrorf("maxvol needs at least %d rows, got %d", r, m).WithComponent("ttcross")
	}

	rows := pivotRows(A)
	if m == r {
		return rows, nil
	}

	sub := mat.NewDense(r, r, nil)
	var coef mat.Dense
	for iter := 0; iter < maxIters; iter++ {
		for i, ri := range rows {
			sub.SetRow(i, A.RawRowView(ri))
		}

		// coef = A·sub^-1, computed via sub^T·coef^T = A^T.
		if err := coef.Solve(sub.T(), A.T()); err != nil {
			// The submatrix went singular; keep the current rows.
			return rows, nil
		}

		bi, bj, bv := -1, -1, tol
		for j := 0; j < r; j++ {
			col := coef.RawRowView(j) // row j of coef^T is column j of coef
			for i := 0; i < m; i++ {
				if v := math.Abs(col[i]); v > bv {
					bi, bj, bv = i, j, v
				}
			}
		}
		if bi < 0 {
			return rows, nil
		}
		rows[bj] = bi
	}
	return rows, nil
}

// pivotRows runs Gaussian elimination with partial pivoting on a copy of
// A and returns the pivot row of each elimination step. These rows form
// a nonsingular (well-conditioned, if one exists) square submatrix to
// seed the maxvol iteration.
func pivotRows(A *mat.Dense) []int {
	m, r := A.Dims()
	work := mat.DenseCopyOf(A)
	rowIdx := make([]int, m)
	for i := range rowIdx {
		rowIdx[i] = i
	}

	pivots := make([]int, r)
	for k := 0; k < r; k++ {
		// Largest remaining entry in column k.
		best, bestAbs := k, math.Abs(work.At(k, k))
		for i := k + 1; i < m; i++ {
			if v := math.Abs(work.At(i, k)); v > bestAbs {
				best, bestAbs = i, v
			}
		}
		if best != k {
			rowIdx[k], rowIdx[best] = rowIdx[best], rowIdx[k]
			for j := 0; j < r; j++ {
				wk, wb := work.At(k, j), work.At(best, j)
				work.Set(k, j, wb)
				work.Set(best, j, wk)
			}
		}
		pivots[k] = rowIdx[k]

		piv := work.At(k, k)
		if piv == 0 {
			// Column is fully eliminated; the row chosen above still
			// extends the index set.
			continue
		}
		for i := k + 1; i < m; i++ {
			f := work.At(i, k) / piv
			if f == 0 {
				continue
			}
			for j := k; j < r; j++ {
				work.Set(i, j, work.At(i, j)-f*work.At(k, j))
			}
		}
	}
	return pivots
}
