package ttcross

import (
	"fmt"
	"math"
	"strings"

	"github.com/crossdev/ttserve/internal/optimization"
)

// buildReport renders the textual run summary. Wall-clock time is
// deliberately excluded: two runs with the same config and seed must
// produce identical reports.
func buildReport(cfg optimization.RunConfig, grid *Grid, res *optimization.Result) string {
	name := cfg.Name
	if name == "" {
		name = "objective"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s-%dd", name, cfg.Dimensions)
	if grid.Folded() {
		fmt.Fprintf(&b, " | grid=%d^%d", cfg.GridBase, cfg.GridPower)
	} else {
		fmt.Fprintf(&b, " | grid=%d", grid.PointsPerDim())
	}
	fmt.Fprintf(&b, " | rank=%d", cfg.Rank)
	fmt.Fprintf(&b, " | evals=%.2e", float64(res.Evaluations))
	fmt.Fprintf(&b, " | sweeps=%d", res.Sweeps)
	fmt.Fprintf(&b, " | y=%.7e", res.BestValue)
	if cfg.YOpt != nil {
		fmt.Fprintf(&b, " | e_y=%.1e", math.Abs(res.BestValue-*cfg.YOpt))
	}
	return b.String()
}
