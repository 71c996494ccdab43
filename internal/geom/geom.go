// Package geom provides frame-tagged 2D points and the rigid transform
// between the simulator's world frame and the vehicle frame.
//
// Points carry their frame in the type so world coordinates cannot be fed
// to code expecting vehicle-relative coordinates without an explicit
// transform.
package geom

import (
	"fmt"
	"math"
)

// WorldPoint is a point in the simulator's global coordinate system.
type WorldPoint struct {
	X float64
	Y float64
}

// VehiclePoint is a point in the frame centred on the vehicle with the
// x-axis aligned to the vehicle heading.
type VehiclePoint struct {
	X float64
	Y float64
}

// Pose is the vehicle's world-frame position and heading at one telemetry
// instant. Psi is in radians and need not be normalised.
type Pose struct {
	X   float64
	Y   float64
	Psi float64
}

// ToVehicleFrame expresses a world-frame point in the vehicle frame defined
// by p: translate by (-p.X, -p.Y), then rotate by -p.Psi.
func (p Pose) ToVehicleFrame(pt WorldPoint) VehiclePoint {
	dx := pt.X - p.X
	dy := pt.Y - p.Y
	sin, cos := math.Sincos(p.Psi)
	return VehiclePoint{
		X: cos*dx + sin*dy,
		Y: -sin*dx + cos*dy,
	}
}

// FromVehicleFrame is the inverse of ToVehicleFrame: rotate by p.Psi, then
// translate by (p.X, p.Y).
func (p Pose) FromVehicleFrame(pt VehiclePoint) WorldPoint {
	sin, cos := math.Sincos(p.Psi)
	return WorldPoint{
		X: cos*pt.X - sin*pt.Y + p.X,
		Y: sin*pt.X + cos*pt.Y + p.Y,
	}
}

// PathToVehicleFrame transforms an ordered world-frame path element-wise,
// preserving order. An empty path yields an empty path.
func (p Pose) PathToVehicleFrame(pts []WorldPoint) []VehiclePoint {
	out := make([]VehiclePoint, len(pts))
	for i, pt := range pts {
		out[i] = p.ToVehicleFrame(pt)
	}
	return out
}

// ZipWorld pairs parallel coordinate slices into an ordered world-frame path.
func ZipWorld(xs, ys []float64) ([]WorldPoint, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("mismatched path coordinates: %d x values, %d y values", len(xs), len(ys))
	}
	pts := make([]WorldPoint, len(xs))
	for i := range xs {
		pts[i] = WorldPoint{X: xs[i], Y: ys[i]}
	}
	return pts, nil
}

// SplitVehicle unzips a vehicle-frame path back into parallel coordinate
// slices for encoding.
func SplitVehicle(pts []VehiclePoint) (xs, ys []float64) {
	xs = make([]float64, len(pts))
	ys = make([]float64, len(pts))
	for i, pt := range pts {
		xs[i] = pt.X
		ys[i] = pt.Y
	}
	return xs, ys
}

// ZipVehicle pairs parallel coordinate slices into an ordered vehicle-frame
// path, used when decoding an optimizer's predicted trajectory.
func ZipVehicle(xs, ys []float64) ([]VehiclePoint, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("mismatched path coordinates: %d x values, %d y values", len(xs), len(ys))
	}
	pts := make([]VehiclePoint, len(xs))
	for i := range xs {
		pts[i] = VehiclePoint{X: xs[i], Y: ys[i]}
	}
	return pts, nil
}
