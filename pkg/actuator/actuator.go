// Package actuator drives ESC inputs from normalized commands.
package actuator

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("actuator: bank closed")
	// ErrIndex is returned for an actuator index outside the bank.
	ErrIndex = errors.New("actuator: index out of range")
)

// Standard RC ESC pulse widths at 50 Hz, as duty cycle percent.
const (
	DutyMin     = 5.0  // 1.0 ms: full reverse, or weapon off
	DutyNeutral = 7.5  // 1.5 ms: stop
	DutyMax     = 10.0 // 2.0 ms: full forward, or weapon full
)

// Bank is a set of drive actuators plus a weapon output.
type Bank interface {
	// SetActuator commands drive actuator i with a value in [-1, 1]
	SetActuator(i int, value float64) error
	// SetWeapon commands the weapon throttle with a value in [0, 1]
	SetWeapon(value float64) error
	// Actuators returns the number of drive actuators
	Actuators() int
	// Close stops every output
	Close() error
}

// DriveDuty maps a bidirectional command to duty percent (5%..10%, 7.5% neutral).
func DriveDuty(v float64) float64 {
	return DutyNeutral + (DutyMax-DutyNeutral)*clamp(v, -1, 1)
}

// WeaponDuty maps a weapon throttle to duty percent (5% off, 10% full).
func WeaponDuty(v float64) float64 {
	return DutyMin + (DutyMax-DutyMin)*clamp(v, 0, 1)
}

// SetAll writes every drive actuator, then the weapon. It keeps going
// after a failure so one bad channel cannot leave the others stale, and
// returns the errors joined.
func SetAll(b Bank, drive []float64, weapon float64) error {
	var errs []error
	for i, v := range drive {
		if err := b.SetActuator(i, v); err != nil {
			errs = append(errs, fmt.Errorf("actuator %d: %w", i, err))
		}
	}
	if err := b.SetWeapon(weapon); err != nil {
		errs = append(errs, fmt.Errorf("weapon: %w", err))
	}
	return errors.Join(errs...)
}

// Stop commands neutral on every drive actuator and turns the weapon off.
func Stop(b Bank) error {
	return SetAll(b, make([]float64, b.Actuators()), 0)
}

func clamp(v, lo, hi float64) float64 {
	if v != v {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
