package tracking

import "time"

// Target is a detected opponent in image pixel coordinates.
type Target struct {
	X           int       `json:"x"`
	Y           int       `json:"y"`
	FrameWidth  int       `json:"frame_width"`
	FrameHeight int       `json:"frame_height"`
	Seen        time.Time `json:"seen"`
}

// Offset returns the horizontal distance from the image center in pixels.
// Positive means the target is right of center.
func (t Target) Offset() int {
	return t.X - t.FrameWidth/2
}

// Error returns Offset normalized to [-1, 1] by the half frame width.
func (t Target) Error() float64 {
	half := t.FrameWidth / 2
	if half == 0 {
		return 0
	}
	return clamp(float64(t.Offset())/float64(half), -1, 1)
}

// Centered reports whether the target is inside the deadband.
func (t Target) Centered(deadbandPx int) bool {
	off := t.Offset()
	if off < 0 {
		off = -off
	}
	return off < deadbandPx
}
