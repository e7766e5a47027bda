package ttcross

import "gonum.org/v1/gonum/mat"

// matrixPool recycles dense matrices across the evaluation batches of a
// run. Batch shapes repeat from core to core, so the backing slices are
// reused instead of reallocated. Not safe for concurrent use; each run
// owns its pool.
type matrixPool struct {
	dense []*mat.Dense
}

// getDense returns an r-by-c matrix whose contents are unspecified.
// Callers must set every element they read back.
func (p *matrixPool) getDense(r, c int) *mat.Dense {
	if n := len(p.dense); n > 0 {
		m := p.dense[n-1]
		p.dense = p.dense[:n-1]
		m.ReuseAs(r, c)
		return m
	}
	return mat.NewDense(r, c, nil)
}

// putDense resets a matrix and returns it to the pool.
func (p *matrixPool) putDense(m *mat.Dense) {
	m.Reset()
	p.dense = append(p.dense, m)
}
