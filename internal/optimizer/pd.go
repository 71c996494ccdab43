// Package optimizer provides trajectory optimizer implementations behind
// the control.Optimizer interface: a proportional tracking controller for
// running without an external solver, and an adapter for solvers with a
// flat-vector interface.
package optimizer

import (
	"context"
	"math"

	"github.com/banshee-data/pathtrack/internal/control"
	"github.com/banshee-data/pathtrack/internal/geom"
	"github.com/banshee-data/pathtrack/internal/poly"
)

// PDConfig holds the gains and vehicle parameters for the proportional
// tracking controller.
type PDConfig struct {
	CrossTrackGain float64 // steering response to lateral offset (rad per metre)
	HeadingGain    float64 // steering response to heading error
	SpeedGain      float64 // throttle response to speed shortfall
	TargetSpeed    float64 // cruise speed in simulator speed units
	MaxSteerRad    float64 // steering clamp, full lock deflection
	HorizonSteps   int     // predicted trajectory length
	StepDuration   float64 // seconds per predicted step
	Wheelbase      float64 // distance from centre of gravity to front axle, metres
}

// DefaultPDConfig returns gains tuned for the stock simulator track.
func DefaultPDConfig() PDConfig {
	return PDConfig{
		CrossTrackGain: 0.08,
		HeadingGain:    1.2,
		SpeedGain:      0.05,
		TargetSpeed:    40,
		MaxSteerRad:    control.DefaultMaxSteerRad,
		HorizonSteps:   10,
		StepDuration:   0.1,
		Wheelbase:      2.67,
	}
}

// PD is a stateless proportional controller on cross-track and heading
// error. It stands in for a full trajectory optimizer when none is linked:
// same interface, same output conventions (steering as a deflection in
// radians, positive turning left), far simpler solve.
type PD struct {
	cfg PDConfig
}

// NewPD builds a controller with the given configuration.
func NewPD(cfg PDConfig) *PD {
	return &PD{cfg: cfg}
}

// Solve computes the actuation for one state. The predicted trajectory is a
// forward simulation of the kinematic bicycle model under the chosen
// steering, so the visualised green line reflects what the controller
// actually commands.
func (p *PD) Solve(ctx context.Context, st control.State, path poly.Polynomial) (control.Solution, error) {
	if err := ctx.Err(); err != nil {
		return control.Solution{}, err
	}

	// Negative heading error means the path bears left; steer left
	// (positive deflection) to close it.
	delta := -p.cfg.HeadingGain*st.EPsi + p.cfg.CrossTrackGain*st.CTE
	delta = clamp(delta, -p.cfg.MaxSteerRad, p.cfg.MaxSteerRad)

	throttle := clamp(p.cfg.SpeedGain*(p.cfg.TargetSpeed-st.Speed), -1, 1)

	predicted := make([]geom.VehiclePoint, 0, p.cfg.HorizonSteps)
	x, y, psi := 0.0, 0.0, 0.0
	for i := 0; i < p.cfg.HorizonSteps; i++ {
		psi += st.Speed / p.cfg.Wheelbase * delta * p.cfg.StepDuration
		x += st.Speed * math.Cos(psi) * p.cfg.StepDuration
		y += st.Speed * math.Sin(psi) * p.cfg.StepDuration
		predicted = append(predicted, geom.VehiclePoint{X: x, Y: y})
	}

	return control.Solution{
		Steering:  delta,
		Throttle:  throttle,
		Predicted: predicted,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
