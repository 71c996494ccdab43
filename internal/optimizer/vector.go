package optimizer

import (
	"context"
	"fmt"

	"github.com/banshee-data/pathtrack/internal/control"
	"github.com/banshee-data/pathtrack/internal/poly"
)

// VectorFunc is the signature external flat-vector solvers expose: state
// and coefficients in, the decision-variable vector plus the predicted
// trajectory coordinates out.
type VectorFunc func(ctx context.Context, state, coeffs []float64) (vars, xs, ys []float64, err error)

// VectorAdapter wraps a flat-vector solver as a control.Optimizer, keeping
// the solver's output-offset contract out of the control loop.
type VectorAdapter struct {
	Solver VectorFunc
}

// Solve invokes the wrapped solver and decodes its output.
func (a VectorAdapter) Solve(ctx context.Context, st control.State, path poly.Polynomial) (control.Solution, error) {
	vars, xs, ys, err := a.Solver(ctx, st.Vector(), path)
	if err != nil {
		return control.Solution{}, fmt.Errorf("vector solver failed: %w", err)
	}
	return control.SolutionFromVector(vars, xs, ys)
}
