// Package tracking turns a pixel-space target estimate into steering
// commands for the autonomous behaviors.
package tracking

import "time"

// Config holds all tunable parameters for autonomous targeting
type Config struct {
	// Behavior
	DeadbandPx  int     `yaml:"deadband_px"`  // Target is "ahead" when |offset| < this (pixels)
	EngageSpeed float64 `yaml:"engage_speed"` // Forward command while engaging (0-1)
	SearchTurn  float64 `yaml:"search_turn"`  // Rotate command while searching (signed, -1..1)

	// PD steering on normalized horizontal error (-1 left edge, +1 right edge)
	Kp      float64 `yaml:"kp"`       // Proportional gain
	Kd      float64 `yaml:"kd"`       // Derivative gain (dampening)
	MaxTurn float64 `yaml:"max_turn"` // Rotate command ceiling
	MinTurn float64 `yaml:"min_turn"` // Rotate command floor outside the deadband (overcomes stiction)

	// Perception
	PositionSmoothing float64       `yaml:"position_smoothing"` // Exponential smoothing factor (0-1, higher = more new data)
	MissTolerance     int           `yaml:"miss_tolerance"`     // Hold the last target for this many missed detections
	MaxAge            time.Duration `yaml:"max_age"`            // Targets older than this are treated as absent
}

// DefaultConfig returns the tuning used at events: 50px deadband on a
// 640px frame, half speed charge, slow clockwise search.
func DefaultConfig() Config {
	return Config{
		DeadbandPx:  50,
		EngageSpeed: 0.5,
		SearchTurn:  0.3,

		Kp:      0.6,
		Kd:      0.1,
		MaxTurn: 0.5,
		MinTurn: 0.2,

		PositionSmoothing: 0.6, // 60% new, 40% old
		MissTolerance:     2,
		MaxAge:            250 * time.Millisecond,
	}
}

// SlowConfig returns a configuration for cautious testing on the bench
func SlowConfig() Config {
	cfg := DefaultConfig()
	cfg.EngageSpeed = 0.3
	cfg.SearchTurn = 0.2
	cfg.Kp = 0.4
	cfg.Kd = 0.15 // More dampening
	cfg.MaxTurn = 0.3
	cfg.MinTurn = 0.15
	return cfg
}

// AggressiveConfig returns a configuration for fast arena play
func AggressiveConfig() Config {
	cfg := DefaultConfig()
	cfg.DeadbandPx = 70
	cfg.EngageSpeed = 0.9
	cfg.SearchTurn = 0.45
	cfg.Kp = 0.9
	cfg.Kd = 0.05 // Less dampening
	cfg.MaxTurn = 0.8
	cfg.PositionSmoothing = 0.8 // Trust new readings more
	return cfg
}

// Preset returns a named configuration, or false for an unknown name.
func Preset(name string) (Config, bool) {
	switch name {
	case "", "default":
		return DefaultConfig(), true
	case "slow":
		return SlowConfig(), true
	case "aggressive":
		return AggressiveConfig(), true
	}
	return Config{}, false
}

// Validate returns a list of problems, or nil if the config is usable.
func (c *Config) Validate() []string {
	var errors []string
	if c.DeadbandPx < 0 {
		errors = append(errors, "deadband_px must not be negative")
	}
	if c.EngageSpeed < 0 || c.EngageSpeed > 1 {
		errors = append(errors, "engage_speed must be between 0 and 1")
	}
	if c.SearchTurn < -1 || c.SearchTurn > 1 {
		errors = append(errors, "search_turn must be between -1 and 1")
	}
	if c.Kp < 0 || c.Kd < 0 {
		errors = append(errors, "kp and kd must not be negative")
	}
	if c.MaxTurn <= 0 || c.MaxTurn > 1 {
		errors = append(errors, "max_turn must be in (0, 1]")
	}
	if c.MinTurn < 0 || c.MinTurn > c.MaxTurn {
		errors = append(errors, "min_turn must be between 0 and max_turn")
	}
	if c.PositionSmoothing <= 0 || c.PositionSmoothing > 1 {
		errors = append(errors, "position_smoothing must be in (0, 1]")
	}
	if c.MissTolerance < 0 {
		errors = append(errors, "miss_tolerance must not be negative")
	}
	return errors
}
