package loop

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/banshee-data/pathtrack/internal/control"
	"github.com/banshee-data/pathtrack/internal/geom"
	"github.com/banshee-data/pathtrack/internal/poly"
	"github.com/google/go-cmp/cmp"
)

const diagonalTelemetry = `42["telemetry",{"ptsx":[1,2,3,4,5],"ptsy":[1,2,3,4,5],"x":0,"y":0,"psi":0,"speed":10}]`

// scriptChannel replays a fixed sequence of inbound frames and collects
// everything written back.
type scriptChannel struct {
	frames []string
	reads  int
	writes []string
}

func (c *scriptChannel) ReadFrame(ctx context.Context) (string, error) {
	if c.reads >= len(c.frames) {
		return "", io.EOF
	}
	f := c.frames[c.reads]
	c.reads++
	return f, nil
}

func (c *scriptChannel) WriteFrame(ctx context.Context, frame string) error {
	c.writes = append(c.writes, frame)
	return nil
}

type stubOptimizer struct {
	sol    control.Solution
	err    error
	states []control.State
	paths  []poly.Polynomial
}

func (o *stubOptimizer) Solve(ctx context.Context, st control.State, path poly.Polynomial) (control.Solution, error) {
	o.states = append(o.states, st)
	o.paths = append(o.paths, path)
	return o.sol, o.err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ActuationLatency = 0
	return cfg
}

// decodeSteer unpacks a steer frame written by the loop.
func decodeSteer(t *testing.T, frame string) map[string]json.RawMessage {
	t.Helper()
	var parts []json.RawMessage
	start := 2 // strip the "42" event prefix
	if err := json.Unmarshal([]byte(frame[start:]), &parts); err != nil {
		t.Fatalf("frame %q is not an event array: %v", frame, err)
	}
	var event string
	if err := json.Unmarshal(parts[0], &event); err != nil || event != "steer" {
		t.Fatalf("frame %q is not a steer event", frame)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(parts[1], &fields); err != nil {
		t.Fatalf("failed to decode steer body: %v", err)
	}
	return fields
}

func floatField(t *testing.T, fields map[string]json.RawMessage, name string) float64 {
	t.Helper()
	var v float64
	if err := json.Unmarshal(fields[name], &v); err != nil {
		t.Fatalf("field %q: %v", name, err)
	}
	return v
}

func floatsField(t *testing.T, fields map[string]json.RawMessage, name string) []float64 {
	t.Helper()
	var v []float64
	if err := json.Unmarshal(fields[name], &v); err != nil {
		t.Fatalf("field %q: %v", name, err)
	}
	return v
}

func TestTelemetryCycle(t *testing.T) {
	ch := &scriptChannel{frames: []string{diagonalTelemetry}}
	opt := &stubOptimizer{sol: control.Solution{
		Steering:  -0.436332,
		Throttle:  0.3,
		Predicted: []geom.VehiclePoint{{X: 0, Y: 0}, {X: 1, Y: 1}},
	}}
	s := New(ch, opt, testConfig(), nil, nil)

	if err := s.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v, want io.EOF at end of script", err)
	}

	// The optimizer saw the vehicle-frame state for the straight diagonal:
	// on the line, heading error -atan(1).
	if len(opt.states) != 1 {
		t.Fatalf("optimizer called %d times, want 1", len(opt.states))
	}
	st := opt.states[0]
	if st.X != 0 || st.Y != 0 || st.Psi != 0 {
		t.Errorf("state carries nonzero pose: %+v", st)
	}
	if st.Speed != 10 {
		t.Errorf("state speed = %v, want 10", st.Speed)
	}
	if math.Abs(st.CTE) > 1e-6 {
		t.Errorf("cross-track error = %v, want ~0", st.CTE)
	}
	if math.Abs(st.EPsi-(-math.Atan(1))) > 1e-6 {
		t.Errorf("heading error = %v, want %v", st.EPsi, -math.Atan(1))
	}

	if len(ch.writes) != 1 {
		t.Fatalf("wrote %d frames, want 1", len(ch.writes))
	}
	fields := decodeSteer(t, ch.writes[0])

	// Full left lock divided by the negated max-steer constant is +1.
	if got := floatField(t, fields, "steering_angle"); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("steering_angle = %v, want 1.0", got)
	}
	if got := floatField(t, fields, "throttle"); got != 0.3 {
		t.Errorf("throttle = %v, want passthrough 0.3", got)
	}

	// The reference line is echoed in vehicle frame; identity pose leaves
	// it unchanged.
	if diff := cmp.Diff([]float64{1, 2, 3, 4, 5}, floatsField(t, fields, "next_x")); diff != "" {
		t.Errorf("next_x mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 2, 3, 4, 5}, floatsField(t, fields, "next_y")); diff != "" {
		t.Errorf("next_y mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 1}, floatsField(t, fields, "mpc_x")); diff != "" {
		t.Errorf("mpc_x mismatch (-want +got):\n%s", diff)
	}

	snap := s.Counters().Snapshot()
	if snap.Cycles != 1 || snap.Skipped != 0 {
		t.Errorf("counters = %+v, want one clean cycle", snap)
	}
}

func TestManualDrivingBranch(t *testing.T) {
	ch := &scriptChannel{frames: []string{`42["telemetry",null]`}}
	opt := &stubOptimizer{}
	s := New(ch, opt, testConfig(), nil, nil)

	if err := s.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v", err)
	}

	if len(opt.states) != 0 {
		t.Error("optimizer invoked on manual-driving frame")
	}
	if len(ch.writes) != 1 || ch.writes[0] != `42["manual",{}]` {
		t.Errorf("writes = %v, want single manual acknowledgment", ch.writes)
	}
	if snap := s.Counters().Snapshot(); snap.Manual != 1 {
		t.Errorf("manual counter = %d, want 1", snap.Manual)
	}
}

func TestNonEventFramesIgnored(t *testing.T) {
	ch := &scriptChannel{frames: []string{"2", `0{"sid":"x"}`, ""}}
	s := New(ch, &stubOptimizer{}, testConfig(), nil, nil)

	if err := s.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v", err)
	}
	if len(ch.writes) != 0 {
		t.Errorf("wrote %v for non-event frames", ch.writes)
	}
}

func TestMalformedFrameSkipsCycle(t *testing.T) {
	ch := &scriptChannel{frames: []string{
		`42["telemetry",{"ptsx":"bad"}]`,
		diagonalTelemetry,
	}}
	opt := &stubOptimizer{sol: control.Solution{}}
	s := New(ch, opt, testConfig(), nil, nil)

	if err := s.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v", err)
	}

	// The malformed cycle produced no response; the next cycle proceeded.
	if len(ch.writes) != 1 {
		t.Fatalf("wrote %d frames, want 1", len(ch.writes))
	}
	snap := s.Counters().Snapshot()
	if snap.Skipped != 1 || snap.Cycles != 1 {
		t.Errorf("counters = %+v, want 1 skipped + 1 clean", snap)
	}
}

func TestTooFewWaypointsSkipsCycle(t *testing.T) {
	ch := &scriptChannel{frames: []string{
		`42["telemetry",{"ptsx":[1,2,3],"ptsy":[1,2,3],"x":0,"y":0,"psi":0,"speed":5}]`,
	}}
	opt := &stubOptimizer{}
	s := New(ch, opt, testConfig(), nil, nil)

	if err := s.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v", err)
	}

	if len(opt.states) != 0 {
		t.Error("optimizer invoked despite degenerate fit")
	}
	if len(ch.writes) != 0 {
		t.Errorf("wrote %v, want no response for skipped cycle", ch.writes)
	}
	if snap := s.Counters().Snapshot(); snap.Skipped != 1 {
		t.Errorf("skipped counter = %d, want 1", snap.Skipped)
	}
}

func TestOptimizerFailureFallsBackToNeutral(t *testing.T) {
	ch := &scriptChannel{frames: []string{diagonalTelemetry}}
	opt := &stubOptimizer{err: errors.New("solve diverged")}
	s := New(ch, opt, testConfig(), nil, nil)

	if err := s.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v", err)
	}

	if len(ch.writes) != 1 {
		t.Fatalf("wrote %d frames, want fallback response", len(ch.writes))
	}
	fields := decodeSteer(t, ch.writes[0])
	if got := floatField(t, fields, "steering_angle"); got != 0 {
		t.Errorf("fallback steering = %v, want neutral 0", got)
	}
	if got := floatField(t, fields, "throttle"); got != 0 {
		t.Errorf("fallback throttle = %v, want 0", got)
	}
	if snap := s.Counters().Snapshot(); snap.Fallbacks != 1 {
		t.Errorf("fallback counter = %d, want 1", snap.Fallbacks)
	}
}

func TestIdenticalTelemetryYieldsIdenticalOutput(t *testing.T) {
	ch := &scriptChannel{frames: []string{diagonalTelemetry, diagonalTelemetry}}
	opt := &stubOptimizer{sol: control.Solution{Steering: 0.1, Throttle: 0.5}}
	s := New(ch, opt, testConfig(), nil, nil)

	if err := s.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v", err)
	}

	if len(ch.writes) != 2 {
		t.Fatalf("wrote %d frames, want 2", len(ch.writes))
	}
	if ch.writes[0] != ch.writes[1] {
		t.Errorf("cycle output differs for identical input:\n%s\n%s", ch.writes[0], ch.writes[1])
	}
	// Both optimizer calls saw the same state: no cycle-to-cycle memory.
	if diff := cmp.Diff(opt.states[0], opt.states[1]); diff != "" {
		t.Errorf("state differs between cycles (-first +second):\n%s", diff)
	}
}

type recorderFunc func(rec CycleRecord) error

func (f recorderFunc) RecordCycle(rec CycleRecord) error { return f(rec) }

func TestRecorderReceivesCycle(t *testing.T) {
	ch := &scriptChannel{frames: []string{diagonalTelemetry}}
	opt := &stubOptimizer{sol: control.Solution{Steering: -0.436332, Throttle: 0.3}}

	var recorded []CycleRecord
	rec := recorderFunc(func(r CycleRecord) error {
		recorded = append(recorded, r)
		return nil
	})
	s := New(ch, opt, testConfig(), rec, nil)

	if err := s.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v", err)
	}

	if len(recorded) != 1 {
		t.Fatalf("recorded %d cycles, want 1", len(recorded))
	}
	r := recorded[0]
	if r.Speed != 10 || math.Abs(r.Steering-1.0) > 1e-9 || r.Throttle != 0.3 {
		t.Errorf("record = %+v", r)
	}
	if r.Fallback {
		t.Error("clean cycle marked as fallback")
	}
}

func TestRecorderErrorDoesNotFailCycle(t *testing.T) {
	ch := &scriptChannel{frames: []string{diagonalTelemetry}}
	rec := recorderFunc(func(CycleRecord) error { return errors.New("disk full") })
	s := New(ch, &stubOptimizer{}, testConfig(), rec, nil)

	if err := s.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v", err)
	}
	if len(ch.writes) != 1 {
		t.Errorf("wrote %d frames, want the cycle to survive a recording failure", len(ch.writes))
	}
}

func TestActuationLatencyDelaysResponse(t *testing.T) {
	ch := &scriptChannel{frames: []string{diagonalTelemetry}}
	cfg := testConfig()
	cfg.ActuationLatency = 30 * time.Millisecond
	s := New(ch, &stubOptimizer{}, cfg, nil, nil)

	start := time.Now()
	if err := s.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v", err)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("loop finished in %v, expected ≥30ms actuation delay", elapsed)
	}
	if len(ch.writes) != 1 {
		t.Errorf("wrote %d frames, want 1", len(ch.writes))
	}
}

func TestCancelDuringActuationWait(t *testing.T) {
	ch := &scriptChannel{frames: []string{diagonalTelemetry}}
	cfg := testConfig()
	cfg.ActuationLatency = time.Hour
	s := New(ch, &stubOptimizer{}, cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if len(ch.writes) != 0 {
		t.Errorf("wrote %v after cancellation", ch.writes)
	}
}
