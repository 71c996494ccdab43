package control

// DefaultMaxSteerRad is the maximum physical steering deflection of the
// simulator vehicle, 25 degrees in radians. It is a calibration constant of
// the vehicle/simulator pairing, not a property of the controller; override
// it through SteeringCalibration when targeting different hardware.
const DefaultMaxSteerRad = 0.436332

// SteeringCalibration converts between the optimizer's steering output
// (a deflection in radians) and the normalised [-1, 1] command the actuator
// interface expects.
type SteeringCalibration struct {
	// MaxSteerRad is the full-lock deflection in radians. Must be positive.
	MaxSteerRad float64
}

// DefaultCalibration returns the calibration for the stock simulator vehicle.
func DefaultCalibration() SteeringCalibration {
	return SteeringCalibration{MaxSteerRad: DefaultMaxSteerRad}
}

// EncodeSteering converts a raw optimizer steering value to the actuator
// command. The simulator's steering sign is opposite the optimizer's yaw
// convention, hence the division by the negated limit: full left lock
// (-MaxSteerRad) maps to +1.
func (c SteeringCalibration) EncodeSteering(raw float64) float64 {
	return raw / -c.MaxSteerRad
}

// DecodeSteering is the inverse of EncodeSteering, mapping an actuator
// command back to a deflection in radians.
func (c SteeringCalibration) DecodeSteering(cmd float64) float64 {
	return cmd * -c.MaxSteerRad
}

// Actuation is the final command pair sent back to the simulator. Steering
// is normalised to [-1, 1]; throttle is already in actuator units and passes
// through the codec unmodified.
type Actuation struct {
	Steering float64
	Throttle float64
}

// Encode converts a solution's raw outputs into actuator commands.
func (c SteeringCalibration) Encode(sol Solution) Actuation {
	return Actuation{
		Steering: c.EncodeSteering(sol.Steering),
		Throttle: sol.Throttle,
	}
}
