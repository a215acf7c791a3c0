package actuator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/teslashibe/go-brawler/internal/log"
)

// PWMConfig names the pins driving the ESCs.
type PWMConfig struct {
	Pins      []string `yaml:"pins"`      // Drive ESCs, in mixer actuator order
	Weapon    string   `yaml:"weapon"`    // Weapon ESC
	Frequency int      `yaml:"frequency"` // Hz
}

// DefaultPWMConfig uses the Raspberry Pi hardware PWM pins for the drive
// and GPIO23 for the weapon.
func DefaultPWMConfig() PWMConfig {
	return PWMConfig{
		Pins:      []string{"GPIO12", "GPIO13", "GPIO18", "GPIO19"},
		Weapon:    "GPIO23",
		Frequency: 50,
	}
}

// Pin is the part of gpio.PinIO a PWM output needs.
type Pin interface {
	Name() string
	PWM(duty gpio.Duty, f physic.Frequency) error
	Halt() error
}

// PWMBank drives ESCs with hobby-servo pulses.
type PWMBank struct {
	pins   []Pin
	weapon Pin
	freq   physic.Frequency
	log    *slog.Logger

	mu     sync.Mutex
	closed bool
}

// OpenPWM initializes the host drivers and looks up every pin by name.
// All outputs start at neutral with the weapon off.
func OpenPWM(cfg PWMConfig) (*PWMBank, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	lookup := func(name string) (Pin, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("unknown pin %q", name)
		}
		return p, nil
	}

	pins := make([]Pin, 0, len(cfg.Pins))
	for _, name := range cfg.Pins {
		p, err := lookup(name)
		if err != nil {
			return nil, err
		}
		pins = append(pins, p)
	}
	weapon, err := lookup(cfg.Weapon)
	if err != nil {
		return nil, err
	}

	return NewPWMBank(pins, weapon, cfg.Frequency)
}

// NewPWMBank wraps already resolved pins and puts them at neutral.
func NewPWMBank(pins []Pin, weapon Pin, frequencyHz int) (*PWMBank, error) {
	if frequencyHz <= 0 {
		frequencyHz = 50
	}
	b := &PWMBank{
		pins:   pins,
		weapon: weapon,
		freq:   physic.Frequency(frequencyHz) * physic.Hertz,
		log:    log.Component("actuator"),
	}
	if err := Stop(b); err != nil {
		return nil, fmt.Errorf("initial neutral: %w", err)
	}
	b.log.Info("pwm outputs ready", "drive", len(pins), "weapon", weapon.Name(), "hz", frequencyHz)
	return b, nil
}

// Actuators returns the number of drive outputs
func (b *PWMBank) Actuators() int {
	return len(b.pins)
}

// SetActuator sets drive output i
func (b *PWMBank) SetActuator(i int, value float64) error {
	if i < 0 || i >= len(b.pins) {
		return ErrIndex
	}
	return b.write(b.pins[i], DriveDuty(value))
}

// SetWeapon sets the weapon throttle
func (b *PWMBank) SetWeapon(value float64) error {
	return b.write(b.weapon, WeaponDuty(value))
}

// SetDutyPercent drives every output, weapon included, with a raw duty
// cycle. Used by the ESC calibration sequence.
func (b *PWMBank) SetDutyPercent(pct float64) error {
	var errs []error
	for _, p := range append(append([]Pin(nil), b.pins...), b.weapon) {
		if err := b.write(p, pct); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (b *PWMBank) write(p Pin, pct float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return p.PWM(dutyFromPercent(pct), b.freq)
}

// Close sends neutral, then halts every pin. Safe to call twice.
func (b *PWMBank) Close() error {
	if err := Stop(b); err != nil && !errors.Is(err, ErrClosed) {
		b.log.Warn("neutral before close failed", "err", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for _, p := range append(append([]Pin(nil), b.pins...), b.weapon) {
		if err := p.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func dutyFromPercent(pct float64) gpio.Duty {
	return gpio.Duty(clamp(pct, 0, 100) / 100 * float64(gpio.DutyMax))
}
