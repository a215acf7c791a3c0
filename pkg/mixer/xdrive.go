package mixer

import "math"

// XDrive mixes for four wheels mounted at 45 degrees (X or mecanum layout).
//
// Motor order: 0 front-left, 1 front-right, 2 rear-left, 3 rear-right,
// with rear motors mounted mirrored so their forward is negative Y.
type XDrive struct{}

// Mix applies the X-drive kinematics. If any command exceeds unit magnitude
// all four are scaled by the largest one, which keeps the heading exact and
// gives up speed evenly.
func (XDrive) Mix(in Intent) []float64 {
	x, y, r := in.X, in.Y, in.Rotate
	m := []float64{
		y + x + r,
		y - x - r,
		-y + x - r,
		-y - x + r,
	}

	peak := 0.0
	for _, v := range m {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak > 1 {
		for i := range m {
			m[i] /= peak
		}
	}
	for i := range m {
		m[i] = clamp(m[i], -1, 1)
	}
	return m
}

// Actuators returns 4.
func (XDrive) Actuators() int { return 4 }

// Name returns "xdrive".
func (XDrive) Name() string { return LayoutXDrive }
