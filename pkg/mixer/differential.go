package mixer

// Differential mixes for a two-motor tank layout. Motor 0 is left, 1 right.
// It cannot strafe, so X is ignored.
type Differential struct{}

// Mix returns left = y + r and right = y - r, each clamped.
func (Differential) Mix(in Intent) []float64 {
	return []float64{
		clamp(in.Y+in.Rotate, -1, 1),
		clamp(in.Y-in.Rotate, -1, 1),
	}
}

// Actuators returns 2.
func (Differential) Actuators() int { return 2 }

// Name returns "differential".
func (Differential) Name() string { return LayoutDifferential }
