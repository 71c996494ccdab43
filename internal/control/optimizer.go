package control

import (
	"context"
	"fmt"

	"github.com/banshee-data/pathtrack/internal/geom"
	"github.com/banshee-data/pathtrack/internal/poly"
)

// Solution is an optimizer's answer for one cycle: the first actuation of
// the optimised control sequence, plus the predicted trajectory for
// visualisation. Steering is a deflection in radians (optimizer units, not
// actuator units); Throttle is in final actuator units.
type Solution struct {
	Steering  float64
	Throttle  float64
	Predicted []geom.VehiclePoint
}

// Optimizer solves the trajectory tracking problem for one control state.
// Implementations must treat every call as independent: no state may be
// carried between cycles.
type Optimizer interface {
	Solve(ctx context.Context, st State, path poly.Polynomial) (Solution, error)
}

// Flat-vector solver output layout. Solvers with a vector interface return
// their decision variables as one flat slice; the first actuation lives at
// these fixed offsets. The offsets are part of the solver's output contract
// and are confined to SolutionFromVector so they never leak into the loop.
const (
	vectorSteeringIndex = 6
	vectorThrottleIndex = 7
)

// SolutionFromVector decodes a flat-vector solver's output into a Solution.
// vars must hold at least 8 values; xs and ys are the predicted trajectory
// coordinates and must have equal length.
func SolutionFromVector(vars, xs, ys []float64) (Solution, error) {
	if len(vars) <= vectorThrottleIndex {
		return Solution{}, fmt.Errorf("solver output has %d values, need at least %d", len(vars), vectorThrottleIndex+1)
	}
	predicted, err := geom.ZipVehicle(xs, ys)
	if err != nil {
		return Solution{}, fmt.Errorf("failed to decode predicted trajectory: %w", err)
	}
	return Solution{
		Steering:  vars[vectorSteeringIndex],
		Throttle:  vars[vectorThrottleIndex],
		Predicted: predicted,
	}, nil
}
