package control

import "time"

// State is the control loop's behavior for a tick.
type State int

const (
	Idle State = iota
	Searching
	Engaging
	Tracking
	ManualDrive
	Killed
)

var stateNames = [...]string{"IDLE", "SEARCHING", "ENGAGING", "TRACKING", "MANUAL", "KILLED"}

// String returns the uppercase state name
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// MarshalText encodes the name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Autonomous reports whether the state is driven by vision
func (s State) Autonomous() bool {
	return s == Searching || s == Engaging || s == Tracking
}

// Config holds loop timing and the autonomous weapon setting.
type Config struct {
	Tick           time.Duration `yaml:"tick"`            // Control period
	AutoWeapon     float64       `yaml:"auto_weapon"`     // Weapon throttle while engaging or tracking (0-1)
	PublishEvery   int           `yaml:"publish_every"`   // OnStatus every N ticks, 0 = state changes only
	HeartbeatEvery int           `yaml:"heartbeat_every"` // Log a summary every N ticks, 0 = never
}

// DefaultConfig runs at 50 Hz, matching the ESC update rate.
func DefaultConfig() Config {
	return Config{
		Tick:           20 * time.Millisecond,
		AutoWeapon:     1.0,
		PublishEvery:   5,
		HeartbeatEvery: 100,
	}
}

// Validate returns a list of problems, or nil if the config is usable.
func (c *Config) Validate() []string {
	var errs []string
	if c.Tick <= 0 {
		errs = append(errs, "tick must be positive")
	}
	if c.AutoWeapon < 0 || c.AutoWeapon > 1 {
		errs = append(errs, "auto_weapon must be between 0 and 1")
	}
	if c.PublishEvery < 0 || c.HeartbeatEvery < 0 {
		errs = append(errs, "publish_every and heartbeat_every must not be negative")
	}
	return errs
}
