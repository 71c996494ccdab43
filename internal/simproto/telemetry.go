package simproto

import (
	"encoding/json"
	"fmt"
)

// TelemetryEvent is the event name that triggers the control pipeline.
const TelemetryEvent = "telemetry"

// Telemetry is one simulator measurement: the upcoming reference waypoints
// in world coordinates, the vehicle pose, and its speed.
type Telemetry struct {
	PtsX  []float64 `json:"ptsx"`
	PtsY  []float64 `json:"ptsy"`
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Psi   float64   `json:"psi"`
	Speed float64   `json:"speed"`
}

// MalformedMessageError reports a payload that does not decode into the
// expected [event-name, event-data] shape.
type MalformedMessageError struct {
	Reason string
	Err    error
}

func (e *MalformedMessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed message: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed message: %s", e.Reason)
}

func (e *MalformedMessageError) Unwrap() error { return e.Err }

// DecodeEvent parses an event payload. For telemetry events it returns the
// decoded measurement; for any other event name it returns a nil Telemetry
// and no error, leaving the caller to treat the cycle as a non-event.
func DecodeEvent(payload string) (event string, tel *Telemetry, err error) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &parts); err != nil {
		return "", nil, &MalformedMessageError{Reason: "payload is not a JSON array", Err: err}
	}
	if len(parts) < 2 {
		return "", nil, &MalformedMessageError{Reason: fmt.Sprintf("expected [event, data], got %d elements", len(parts))}
	}
	if err := json.Unmarshal(parts[0], &event); err != nil {
		return "", nil, &MalformedMessageError{Reason: "event name is not a string", Err: err}
	}
	if event != TelemetryEvent {
		return event, nil, nil
	}

	var t Telemetry
	if err := json.Unmarshal(parts[1], &t); err != nil {
		return event, nil, &MalformedMessageError{Reason: "telemetry data does not decode", Err: err}
	}
	if len(t.PtsX) != len(t.PtsY) {
		return event, nil, &MalformedMessageError{
			Reason: fmt.Sprintf("waypoint arrays differ in length: %d vs %d", len(t.PtsX), len(t.PtsY)),
		}
	}
	return event, &t, nil
}
