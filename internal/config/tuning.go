// Package config loads controller tuning from JSON, with a canonical
// defaults file as the single source of truth for default values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/banshee-data/pathtrack/internal/control"
	"github.com/banshee-data/pathtrack/internal/loop"
	"github.com/banshee-data/pathtrack/internal/optimizer"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the tuning parameters for the control loop and
// the built-in tracking controller. All fields are optional; absent fields
// keep their current value when merged.
type TuningConfig struct {
	// Loop params
	MaxSteerRad      *float64 `json:"max_steer_rad,omitempty"`
	FitDegree        *int     `json:"fit_degree,omitempty"`
	MinWaypoints     *int     `json:"min_waypoints,omitempty"`
	ActuationLatency *string  `json:"actuation_latency,omitempty"` // duration string like "100ms"

	// Tracking controller params
	TargetSpeed    *float64 `json:"target_speed,omitempty"`
	CrossTrackGain *float64 `json:"cross_track_gain,omitempty"`
	HeadingGain    *float64 `json:"heading_gain,omitempty"`
	SpeedGain      *float64 `json:"speed_gain,omitempty"`
}

// LoadTuningConfig reads a tuning file.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning config: %w", err)
	}
	var c TuningConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse tuning config %s: %w", path, err)
	}
	return &c, nil
}

// Merge overlays override's set fields onto c.
func (c *TuningConfig) Merge(override *TuningConfig) {
	if override == nil {
		return
	}
	if override.MaxSteerRad != nil {
		c.MaxSteerRad = override.MaxSteerRad
	}
	if override.FitDegree != nil {
		c.FitDegree = override.FitDegree
	}
	if override.MinWaypoints != nil {
		c.MinWaypoints = override.MinWaypoints
	}
	if override.ActuationLatency != nil {
		c.ActuationLatency = override.ActuationLatency
	}
	if override.TargetSpeed != nil {
		c.TargetSpeed = override.TargetSpeed
	}
	if override.CrossTrackGain != nil {
		c.CrossTrackGain = override.CrossTrackGain
	}
	if override.HeadingGain != nil {
		c.HeadingGain = override.HeadingGain
	}
	if override.SpeedGain != nil {
		c.SpeedGain = override.SpeedGain
	}
}

// LoopConfig resolves the loop configuration, starting from loop defaults.
func (c *TuningConfig) LoopConfig() (loop.Config, error) {
	cfg := loop.DefaultConfig()
	if c.MaxSteerRad != nil {
		if *c.MaxSteerRad <= 0 {
			return loop.Config{}, fmt.Errorf("max_steer_rad must be positive, got %v", *c.MaxSteerRad)
		}
		cfg.Calibration = control.SteeringCalibration{MaxSteerRad: *c.MaxSteerRad}
	}
	if c.FitDegree != nil {
		if *c.FitDegree < 1 {
			return loop.Config{}, fmt.Errorf("fit_degree must be at least 1, got %d", *c.FitDegree)
		}
		cfg.FitDegree = *c.FitDegree
		cfg.MinWaypoints = *c.FitDegree + 1
	}
	if c.MinWaypoints != nil {
		if *c.MinWaypoints < cfg.FitDegree+1 {
			return loop.Config{}, fmt.Errorf("min_waypoints %d cannot fit degree %d", *c.MinWaypoints, cfg.FitDegree)
		}
		cfg.MinWaypoints = *c.MinWaypoints
	}
	if c.ActuationLatency != nil {
		d, err := time.ParseDuration(*c.ActuationLatency)
		if err != nil {
			return loop.Config{}, fmt.Errorf("invalid actuation_latency: %w", err)
		}
		if d < 0 {
			return loop.Config{}, fmt.Errorf("actuation_latency must not be negative, got %v", d)
		}
		cfg.ActuationLatency = d
	}
	return cfg, nil
}

// PDConfig resolves the built-in tracking controller configuration.
func (c *TuningConfig) PDConfig() optimizer.PDConfig {
	cfg := optimizer.DefaultPDConfig()
	if c.MaxSteerRad != nil {
		cfg.MaxSteerRad = *c.MaxSteerRad
	}
	if c.TargetSpeed != nil {
		cfg.TargetSpeed = *c.TargetSpeed
	}
	if c.CrossTrackGain != nil {
		cfg.CrossTrackGain = *c.CrossTrackGain
	}
	if c.HeadingGain != nil {
		cfg.HeadingGain = *c.HeadingGain
	}
	if c.SpeedGain != nil {
		cfg.SpeedGain = *c.SpeedGain
	}
	return cfg
}
