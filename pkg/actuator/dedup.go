package actuator

import (
	"math"
	"sync"
)

// Dedup suppresses writes that would not change an output. A failed write
// forgets the cached value so the next tick retries it.
type Dedup struct {
	bank Bank

	// Epsilon is the smallest change forwarded to the bank
	Epsilon float64

	mu     sync.Mutex
	drive  []float64
	valid  []bool
	weapon float64
	wValid bool
}

// NewDedup wraps bank
func NewDedup(bank Bank) *Dedup {
	n := bank.Actuators()
	return &Dedup{
		bank:    bank,
		Epsilon: 1e-4,
		drive:   make([]float64, n),
		valid:   make([]bool, n),
	}
}

// Actuators returns the wrapped bank's drive count
func (d *Dedup) Actuators() int {
	return d.bank.Actuators()
}

// SetActuator forwards value if it differs from the last successful write
func (d *Dedup) SetActuator(i int, value float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.drive) {
		return ErrIndex
	}
	if d.valid[i] && math.Abs(d.drive[i]-value) < d.Epsilon {
		return nil
	}
	if err := d.bank.SetActuator(i, value); err != nil {
		d.valid[i] = false
		return err
	}
	d.drive[i], d.valid[i] = value, true
	return nil
}

// SetWeapon forwards value if it differs from the last successful write
func (d *Dedup) SetWeapon(value float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.wValid && math.Abs(d.weapon-value) < d.Epsilon {
		return nil
	}
	if err := d.bank.SetWeapon(value); err != nil {
		d.wValid = false
		return err
	}
	d.weapon, d.wValid = value, true
	return nil
}

// Close closes the wrapped bank
func (d *Dedup) Close() error {
	return d.bank.Close()
}
