package ttcross

import (
	"github.com/crossdev/ttserve/internal/optimization"
)

// Grid discretizes the search box uniformly. Every dimension carries the
// same bounds and the same number of points, matching the service's run
// configuration. A grid is either direct (one tensor mode of size n per
// dimension) or QTT-folded (GridPower modes of size GridBase per
// dimension, n = GridBase^GridPower), which keeps individual mode sizes
// small for the cross iterations.
type Grid struct {
	d int // original dimensions
	a float64
	b float64
	n int // points per original dimension

	p int // folded mode size, 0 when direct
	q int // folded modes per dimension, 0 when direct
}

// NewUniformGrid builds a direct grid with n points per dimension.
func NewUniformGrid(d int, a, b float64, n int) (*Grid, error) {
	if d <= 0 {
		return nil, optimization.NewErrorf("dimensions must be positive, got %d", d).WithComponent("grid")
	}
	if n < 2 {
		return nil, optimization.NewErrorf("need at least 2 points per dimension, got %d", n).WithComponent("grid")
	}
	if a >= b {
		return nil, optimization.NewErrorf("bounds must be ordered, got [%v, %v]", a, b).WithComponent("grid")
	}
	return &Grid{d: d, a: a, b: b, n: n}, nil
}

// NewQTTGrid builds a folded grid with p^q points per dimension,
// represented as q tensor modes of size p per dimension.
func NewQTTGrid(d int, a, b float64, p, q int) (*Grid, error) {
	if p < 2 {
		return nil, optimization.NewErrorf("grid base must be at least 2, got %d", p).WithComponent("grid")
	}
	if q < 1 {
		return nil, optimization.NewErrorf("grid power must be at least 1, got %d", q).WithComponent("grid")
	}
	n := 1
	for i := 0; i < q; i++ {
		if n > 1<<30/p {
			return nil, optimization.NewErrorf("grid %d^%d overflows", p, q).WithComponent("grid")
		}
		n *= p
	}
	g, err := NewUniformGrid(d, a, b, n)
	if err != nil {
		return nil, err
	}
	g.p, g.q = p, q
	return g, nil
}

// Dimensions returns the number of original function dimensions.
func (g *Grid) Dimensions() int { return g.d }

// PointsPerDim returns the grid resolution of one original dimension.
func (g *Grid) PointsPerDim() int { return g.n }

// Folded reports whether the grid uses QTT folding.
func (g *Grid) Folded() bool { return g.q > 0 }

// Modes returns the tensor mode sizes the cross iterations sweep over:
// d modes of size n for a direct grid, d*q modes of size p when folded.
func (g *Grid) Modes() []int {
	if g.Folded() {
		modes := make([]int, g.d*g.q)
		for i := range modes {
			modes[i] = g.p
		}
		return modes
	}
	modes := make([]int, g.d)
	for i := range modes {
		modes[i] = g.n
	}
	return modes
}

// Point maps a full multi-index (one entry per tensor mode) to a spatial
// point. dst is reused when it has the right length.
func (g *Grid) Point(idx []int, dst []float64) []float64 {
	if len(dst) != g.d {
		dst = make([]float64, g.d)
	}
	step := (g.b - g.a) / float64(g.n-1)
	if g.Folded() {
		for k := 0; k < g.d; k++ {
			// Little-endian digits: mode k*q+t carries weight p^t.
			j, w := 0, 1
			for t := 0; t < g.q; t++ {
				j += idx[k*g.q+t] * w
				w *= g.p
			}
			dst[k] = g.a + float64(j)*step
		}
		return dst
	}
	for k := 0; k < g.d; k++ {
		dst[k] = g.a + float64(idx[k])*step
	}
	return dst
}

// fromRunConfig builds the grid described by a validated run config.
func fromRunConfig(cfg optimization.RunConfig) (*Grid, error) {
	if cfg.GridSize > 0 {
		return NewUniformGrid(cfg.Dimensions, cfg.LowerBound, cfg.UpperBound, cfg.GridSize)
	}
	return NewQTTGrid(cfg.Dimensions, cfg.LowerBound, cfg.UpperBound, cfg.GridBase, cfg.GridPower)
}
