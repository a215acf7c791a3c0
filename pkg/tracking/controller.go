package tracking

import (
	"math"
)

// Steering implements proportional-derivative control for turning toward
// a target seen off-center.
type Steering struct {
	// Gains
	Kp float64 // Proportional gain
	Kd float64 // Derivative gain

	// Limits
	MaxTurn float64 // Output ceiling
	MinTurn float64 // Output floor while the target is off-center

	// State
	lastError  float64
	lastOutput float64
	primed     bool // lastError is valid
}

// NewSteering creates a steering controller from the tracking config
func NewSteering(config Config) *Steering {
	return &Steering{
		Kp:      config.Kp,
		Kd:      config.Kd,
		MaxTurn: config.MaxTurn,
		MinTurn: config.MinTurn,
	}
}

// Update returns the rotate command for a normalized horizontal error
// (negative: target left of center, positive: right).
// The command always turns toward the target: its sign matches the error.
func (s *Steering) Update(err float64) float64 {
	if err == 0 || math.IsNaN(err) {
		s.lastError = 0
		s.lastOutput = 0
		s.primed = true
		return 0
	}

	pTerm := s.Kp * err
	dTerm := 0.0
	if s.primed {
		dTerm = s.Kd * (err - s.lastError)
	}
	output := pTerm + dTerm

	sign := 1.0
	if err < 0 {
		sign = -1.0
	}

	// The derivative can overshoot past zero when the target swings back;
	// never turn away from it.
	if output*sign < s.MinTurn {
		output = sign * s.MinTurn
	}
	output = clamp(output, -s.MaxTurn, s.MaxTurn)

	s.lastError = err
	s.lastOutput = output
	s.primed = true
	return output
}

// Reset forgets the derivative history, e.g. after the target was lost
func (s *Steering) Reset() {
	s.lastError = 0
	s.lastOutput = 0
	s.primed = false
}

// LastOutput returns the most recent command
func (s *Steering) LastOutput() float64 {
	return s.lastOutput
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
