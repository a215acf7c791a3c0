package tracking

import "math"

// Perception smooths raw detections and rides out short detection gaps
type Perception struct {
	// Smoothing
	smoothedX       float64
	smoothedY       float64
	hasLastPosition bool
	smoothingFactor float64 // 0-1, higher = more weight on new reading

	// Detection state
	last              Target
	missTolerance     int
	consecutiveMisses int
}

// NewPerception creates a new perception filter
func NewPerception(config Config) *Perception {
	return &Perception{
		smoothingFactor: config.PositionSmoothing,
		missTolerance:   config.MissTolerance,
	}
}

// Observe folds one detection result into the estimate.
// It returns the smoothed target and whether one is currently believed to
// be in view. A miss keeps the last estimate for up to MissTolerance frames.
func (p *Perception) Observe(t Target, found bool) (Target, bool) {
	if !found {
		p.consecutiveMisses++
		if p.hasLastPosition && p.consecutiveMisses <= p.missTolerance {
			return p.last, true
		}
		p.hasLastPosition = false
		return Target{}, false
	}

	x, y := float64(t.X), float64(t.Y)
	if p.hasLastPosition {
		x = p.smoothingFactor*x + (1-p.smoothingFactor)*p.smoothedX
		y = p.smoothingFactor*y + (1-p.smoothingFactor)*p.smoothedY
	}
	p.smoothedX, p.smoothedY = x, y
	p.hasLastPosition = true
	p.consecutiveMisses = 0

	t.X = int(math.Round(x))
	t.Y = int(math.Round(y))
	p.last = t
	return t, true
}

// GetConsecutiveMisses returns how many consecutive detections have failed
func (p *Perception) GetConsecutiveMisses() int {
	return p.consecutiveMisses
}

// Reset forgets the current estimate
func (p *Perception) Reset() {
	p.hasLastPosition = false
	p.consecutiveMisses = 0
	p.last = Target{}
}
