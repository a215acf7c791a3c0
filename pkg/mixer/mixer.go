// Package mixer converts movement intent into per-motor commands for a
// given drive geometry.
package mixer

import (
	"errors"
	"fmt"
	"math"
)

// Layout names accepted by New.
const (
	LayoutXDrive       = "xdrive"
	LayoutDifferential = "differential"
)

// ErrUnknownLayout is returned by New for an unsupported geometry.
var ErrUnknownLayout = errors.New("unknown drive layout")

// Intent is the normalized movement request. Each axis is in [-1, 1].
// Positive Y drives forward, positive X strafes right, positive Rotate
// turns clockwise seen from above.
type Intent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Rotate float64 `json:"rotate"`
}

// Clamp returns the intent with every axis limited to [-1, 1].
func (i Intent) Clamp() Intent {
	return Intent{
		X:      clamp(i.X, -1, 1),
		Y:      clamp(i.Y, -1, 1),
		Rotate: clamp(i.Rotate, -1, 1),
	}
}

// IsZero reports whether the intent requests no motion.
func (i Intent) IsZero() bool {
	return i.X == 0 && i.Y == 0 && i.Rotate == 0
}

// Mixer maps an intent to motor commands. Implementations are pure:
// the same intent always yields the same commands.
type Mixer interface {
	// Mix returns one command per motor, each in [-1, 1].
	Mix(intent Intent) []float64

	// Actuators returns the number of motors Mix drives.
	Actuators() int

	// Name returns the layout name.
	Name() string
}

// New returns the mixer for a layout name.
func New(layout string) (Mixer, error) {
	switch layout {
	case LayoutXDrive:
		return XDrive{}, nil
	case LayoutDifferential, "tank":
		return Differential{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayout, layout)
	}
}

// Zero returns an all-stop command set for m.
func Zero(m Mixer) []float64 {
	return make([]float64, m.Actuators())
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
