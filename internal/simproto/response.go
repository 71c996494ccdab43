package simproto

import (
	"encoding/json"
	"fmt"
)

// Steer is the outgoing control message: actuator commands plus the two
// vehicle-frame trajectories the simulator draws (predicted in green,
// reference in yellow).
type Steer struct {
	SteeringAngle float64   `json:"steering_angle"`
	Throttle      float64   `json:"throttle"`
	MPCX          []float64 `json:"mpc_x"`
	MPCY          []float64 `json:"mpc_y"`
	NextX         []float64 `json:"next_x"`
	NextY         []float64 `json:"next_y"`
}

// EncodeSteer renders a steer event frame, prefix included.
func EncodeSteer(s Steer) (string, error) {
	body, err := json.Marshal([]interface{}{"steer", s})
	if err != nil {
		return "", fmt.Errorf("failed to encode steer message: %w", err)
	}
	return eventPrefix + string(body), nil
}

// ManualFrame is the fixed acknowledgment for the manual-driving branch.
func ManualFrame() string {
	return eventPrefix + `["manual",{}]`
}
