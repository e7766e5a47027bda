// Package objectives holds the built-in benchmark functions the service
// can minimize. Every function is pure and batch-evaluated: it maps a
// samples-by-dimensions matrix of points to one scalar per row.
package objectives

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/crossdev/ttserve/internal/optimization"
)

// Benchmark couples an objective with its known optimum, which the
// optimizer uses for diagnostic error reporting.
type Benchmark struct {
	// Name identifies the benchmark in requests and reports
	Name string

	// Eval is the batch objective
	Eval optimization.Objective

	// YOpt is the known minimum value
	YOpt float64

	// XOpt returns the known minimizer for the given dimension count
	XOpt func(d int) []float64
}

var registry = map[string]*Benchmark{
	"alpine": {
		Name: "Alpine",
		Eval: batch(func(x float64) float64 {
			return math.Abs(x*math.Sin(x) + 0.1*x)
		}),
		YOpt: 0,
		XOpt: zeros,
	},
	"sphere": {
		Name: "Sphere",
		Eval: batch(func(x float64) float64 {
			return x * x
		}),
		YOpt: 0,
		XOpt: zeros,
	},
	"rastrigin": {
		Name: "Rastrigin",
		Eval: batch(func(x float64) float64 {
			return x*x - 10*math.Cos(2*math.Pi*x) + 10
		}),
		YOpt: 0,
		XOpt: zeros,
	},
}

// Lookup returns the benchmark registered under the given key.
func Lookup(name string) (*Benchmark, bool) {
	b, ok := registry[name]
	return b, ok
}

// Names returns the registered benchmark keys in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// batch lifts an elementwise term into a batch objective that sums the
// term over the coordinates of each row.
func batch(term func(float64) float64) optimization.Objective {
	return func(X *mat.Dense) ([]float64, error) {
		rows, cols := X.Dims()
		y := make([]float64, rows)
		for i := 0; i < rows; i++ {
			row := X.RawRowView(i)
			sum := 0.0
			for j := 0; j < cols; j++ {
				sum += term(row[j])
			}
			y[i] = sum
		}
		return y, nil
	}
}

func zeros(d int) []float64 {
	return make([]float64, d)
}
