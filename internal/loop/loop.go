// Package loop runs the per-connection control cycle: telemetry in,
// actuation out, one response per message.
package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/pathtrack/internal/control"
	"github.com/banshee-data/pathtrack/internal/geom"
	"github.com/banshee-data/pathtrack/internal/monitoring"
	"github.com/banshee-data/pathtrack/internal/poly"
	"github.com/banshee-data/pathtrack/internal/simproto"
)

// Channel is the duplex text-frame transport to the simulator. ReadFrame
// blocks until the next frame arrives or the connection ends.
type Channel interface {
	ReadFrame(ctx context.Context) (string, error)
	WriteFrame(ctx context.Context, frame string) error
}

// CycleRecord captures one completed control cycle for the session recorder.
type CycleRecord struct {
	At       time.Time
	Pose     geom.Pose
	Speed    float64
	CTE      float64
	EPsi     float64
	Steering float64
	Throttle float64
	Fallback bool
}

// Recorder persists completed cycles. Recording failures never fail a cycle.
type Recorder interface {
	RecordCycle(rec CycleRecord) error
}

// Config holds the per-session tuning knobs.
type Config struct {
	// FitDegree is the reference-path polynomial degree.
	FitDegree int
	// MinWaypoints is the minimum waypoint count for a fit; cycles with
	// fewer are skipped.
	MinWaypoints int
	// ActuationLatency is the artificial delay injected before each steer
	// response, emulating actuator lag.
	ActuationLatency time.Duration
	// Calibration converts optimizer steering output to actuator commands.
	Calibration control.SteeringCalibration
}

// DefaultConfig returns the tuning for the stock simulator pairing: cubic
// fit, 100ms actuation lag.
func DefaultConfig() Config {
	return Config{
		FitDegree:        3,
		MinWaypoints:     4,
		ActuationLatency: 100 * time.Millisecond,
		Calibration:      control.DefaultCalibration(),
	}
}

// Session processes one connection's telemetry strictly sequentially. Each
// cycle walks awaiting-message → parsing-telemetry → computing-state →
// awaiting-solution → encoding-response and back; nothing is carried from
// one cycle to the next, so identical telemetry always yields identical
// output.
type Session struct {
	ch       Channel
	opt      control.Optimizer
	cfg      Config
	rec      Recorder // may be nil
	counters *Counters
}

// New builds a session. rec may be nil to disable recording; counters may be
// nil, in which case the session keeps private counters.
func New(ch Channel, opt control.Optimizer, cfg Config, rec Recorder, counters *Counters) *Session {
	if counters == nil {
		counters = &Counters{}
	}
	return &Session{ch: ch, opt: opt, cfg: cfg, rec: rec, counters: counters}
}

// Counters returns the counter set this session reports into.
func (s *Session) Counters() *Counters {
	return s.counters
}

// Run services the connection until ctx is cancelled or the transport
// returns an error (disconnect). Per-cycle errors are logged and skipped;
// they never terminate the loop.
func (s *Session) Run(ctx context.Context) error {
	for {
		frame, err := s.ch.ReadFrame(ctx)
		if err != nil {
			return err
		}
		if !simproto.IsEvent(frame) {
			continue
		}
		monitoring.Debugf("sim frame: %s", frame)

		payload, ok := simproto.Payload(frame)
		if !ok {
			// Manual driving: acknowledge immediately, no pipeline.
			s.counters.manual.Add(1)
			if err := s.ch.WriteFrame(ctx, simproto.ManualFrame()); err != nil {
				return err
			}
			continue
		}

		event, tel, err := simproto.DecodeEvent(payload)
		if err != nil {
			monitoring.Logf("skipping cycle: %v", err)
			s.counters.skipped.Add(1)
			continue
		}
		if tel == nil {
			monitoring.Debugf("ignoring %q event", event)
			continue
		}

		resp, err := s.telemetryCycle(ctx, tel)
		if err != nil {
			monitoring.Logf("skipping cycle: %v", err)
			s.counters.skipped.Add(1)
			continue
		}

		// Actuation latency. A timer rather than a bare sleep so a
		// disconnect or shutdown interrupts the wait.
		if err := s.waitActuation(ctx); err != nil {
			return err
		}
		if err := s.ch.WriteFrame(ctx, resp); err != nil {
			return err
		}
		monitoring.Debugf("steer frame: %s", resp)
		s.counters.cycles.Add(1)
	}
}

// telemetryCycle turns one measurement into a steer frame. World
// coordinates do not survive past the transform step: the fit, the state,
// the optimizer and the response all work in the vehicle frame.
func (s *Session) telemetryCycle(ctx context.Context, tel *simproto.Telemetry) (string, error) {
	pose := geom.Pose{X: tel.X, Y: tel.Y, Psi: tel.Psi}

	waypoints, err := geom.ZipWorld(tel.PtsX, tel.PtsY)
	if err != nil {
		return "", fmt.Errorf("failed to read waypoints: %w", err)
	}
	local := pose.PathToVehicleFrame(waypoints)
	refX, refY := geom.SplitVehicle(local)

	if len(local) < s.cfg.MinWaypoints {
		return "", &control.FitError{Waypoints: len(local), Err: poly.ErrDegreeTooHigh}
	}
	path, err := poly.Fit(refX, refY, s.cfg.FitDegree)
	if err != nil {
		return "", &control.FitError{Waypoints: len(local), Err: err}
	}

	state := control.BuildState(path, tel.Speed)

	sol, err := s.opt.Solve(ctx, state, path)
	fallback := err != nil
	if fallback {
		// Safe fallback: neutral steering, zero throttle, still respond so
		// the simulator is never starved.
		monitoring.Logf("%v; sending neutral actuation", &control.OptimizerError{Err: err})
		s.counters.fallbacks.Add(1)
		sol = control.Solution{}
	}

	act := s.cfg.Calibration.Encode(sol)
	predX, predY := geom.SplitVehicle(sol.Predicted)

	resp, err := simproto.EncodeSteer(simproto.Steer{
		SteeringAngle: act.Steering,
		Throttle:      act.Throttle,
		MPCX:          predX,
		MPCY:          predY,
		NextX:         refX,
		NextY:         refY,
	})
	if err != nil {
		return "", err
	}

	if s.rec != nil {
		record := CycleRecord{
			At:       time.Now(),
			Pose:     pose,
			Speed:    tel.Speed,
			CTE:      state.CTE,
			EPsi:     state.EPsi,
			Steering: act.Steering,
			Throttle: act.Throttle,
			Fallback: fallback,
		}
		if err := s.rec.RecordCycle(record); err != nil {
			monitoring.Logf("failed to record cycle: %v", err)
		}
	}

	return resp, nil
}

func (s *Session) waitActuation(ctx context.Context) error {
	if s.cfg.ActuationLatency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.cfg.ActuationLatency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
