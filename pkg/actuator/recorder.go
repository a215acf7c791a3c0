package actuator

import (
	"log/slog"
	"sync"

	"github.com/teslashibe/go-brawler/internal/log"
)

// Recorder is a Bank with no hardware behind it. It keeps the last value
// written to each output and counts writes; --dry-run and the tests use it.
type Recorder struct {
	mu      sync.Mutex
	drive   []float64
	weapon  float64
	writes  int
	closed  bool
	verbose bool
	log     *slog.Logger
}

// NewRecorder creates a recorder with n drive outputs. When verbose,
// every changed value is logged at debug level.
func NewRecorder(n int, verbose bool) *Recorder {
	return &Recorder{
		drive:   make([]float64, n),
		verbose: verbose,
		log:     log.Component("actuator").With("bank", "dry-run"),
	}
}

// Actuators returns the number of drive outputs
func (r *Recorder) Actuators() int {
	return len(r.drive)
}

// SetActuator records a drive command
func (r *Recorder) SetActuator(i int, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if i < 0 || i >= len(r.drive) {
		return ErrIndex
	}
	value = clamp(value, -1, 1)
	if r.verbose && r.drive[i] != value {
		r.log.Debug("drive", "index", i, "value", value, "duty", DriveDuty(value))
	}
	r.drive[i] = value
	r.writes++
	return nil
}

// SetWeapon records a weapon command
func (r *Recorder) SetWeapon(value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	value = clamp(value, 0, 1)
	if r.verbose && r.weapon != value {
		r.log.Debug("weapon", "value", value, "duty", WeaponDuty(value))
	}
	r.weapon = value
	r.writes++
	return nil
}

// SetDutyPercent records a raw duty on every output
func (r *Recorder) SetDutyPercent(pct float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.log.Info("duty", "percent", pct)
	r.writes++
	return nil
}

// Drive returns a copy of the last drive values
func (r *Recorder) Drive() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.drive...)
}

// Weapon returns the last weapon value
func (r *Recorder) Weapon() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.weapon
}

// Writes returns how many writes reached the recorder
func (r *Recorder) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// Closed reports whether Close was called
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close marks the recorder closed
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
