package optimization

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func validConfig() RunConfig {
	return RunConfig{
		Objective: func(X *mat.Dense) ([]float64, error) {
			rows, _ := X.Dims()
			return make([]float64, rows), nil
		},
		Name:       "Test",
		Dimensions: 4,
		LowerBound: -1,
		UpperBound: 1,
		GridBase:   2,
		GridPower:  5,
		Evals:      100,
		Rank:       3,
	}
}

func TestRunConfigValidate(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestRunConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
	}{
		{"missing objective", func(c *RunConfig) { c.Objective = nil }},
		{"zero dimensions", func(c *RunConfig) { c.Dimensions = 0 }},
		{"negative dimensions", func(c *RunConfig) { c.Dimensions = -3 }},
		{"unordered bounds", func(c *RunConfig) { c.LowerBound, c.UpperBound = 1, -1 }},
		{"equal bounds", func(c *RunConfig) { c.LowerBound, c.UpperBound = 2, 2 }},
		{"grid base too small", func(c *RunConfig) { c.GridBase = 1 }},
		{"grid power too small", func(c *RunConfig) { c.GridPower = 0 }},
		{"direct grid too small", func(c *RunConfig) { c.GridSize = 1 }},
		{"zero budget", func(c *RunConfig) { c.Evals = 0 }},
		{"zero rank", func(c *RunConfig) { c.Rank = 0 }},
		{"x_opt length mismatch", func(c *RunConfig) { c.XOpt = []float64{0, 0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "expected ErrInvalidConfig, got %v", err)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := NewErrorf("bad rank %d", 0).WithComponent("ttcross").WithOperation("minimize")
	assert.Equal(t, "ttcross: minimize: bad rank 0", err.Error())

	wrapped := WrapError(errors.New("boom"), "evaluation failed").WithComponent("ttcross")
	assert.Equal(t, "ttcross: evaluation failed: boom", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "boom")

	assert.Nil(t, WrapError(nil, "ignored"))
}
