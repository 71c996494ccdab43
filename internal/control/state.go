// Package control defines the vehicle-frame control state, the optimizer
// boundary, and the actuator calibration for the trajectory tracker.
package control

import (
	"math"

	"github.com/banshee-data/pathtrack/internal/poly"
)

// State is the six-component control state handed to the optimizer. All
// values are in the vehicle frame, so X, Y and Psi are zero by construction:
// the vehicle is the coordinate origin at evaluation time. Only Speed and
// the two errors carry information.
type State struct {
	X     float64
	Y     float64
	Psi   float64
	Speed float64
	CTE   float64 // cross-track error: lateral offset of the reference path at x=0
	EPsi  float64 // heading error: angle between vehicle heading and the path tangent
}

// BuildState computes the control state from the vehicle-frame reference
// polynomial and the measured speed.
//
// With the vehicle at the local origin, the cross-track error reduces to
// f(0) and the heading error to -atan(f'(0)).
func BuildState(path poly.Polynomial, speed float64) State {
	return State{
		Speed: speed,
		CTE:   path.At(0),
		EPsi:  -math.Atan(path.SlopeAt(0)),
	}
}

// Vector returns the state in the flat layout consumed by vector-interface
// solvers: [x, y, psi, speed, cte, epsi].
func (s State) Vector() []float64 {
	return []float64{s.X, s.Y, s.Psi, s.Speed, s.CTE, s.EPsi}
}
