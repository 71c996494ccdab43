// Package units provides shared conversions for angles and speeds.
package units

import "math"

// Unit constants
const (
	MPS = "mps"
	MPH = "mph"
)

// The simulator reports speed in mph; everything downstream works in m/s.
const mphToMps = 0.44704

// DegToRad converts an angle in degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts an angle in radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// MPHToMPS converts a speed in miles per hour to meters per second.
func MPHToMPS(mph float64) float64 {
	return mph * mphToMps
}

// MPSToMPH converts a speed in meters per second to miles per hour.
func MPSToMPH(mps float64) float64 {
	return mps / mphToMps
}
