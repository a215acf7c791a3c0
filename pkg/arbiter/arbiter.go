// Package arbiter turns raw channel values into a per-tick decision:
// kill state first, then mode, then the operator's movement intent.
package arbiter

import (
	"fmt"
	"sync"

	"github.com/teslashibe/go-brawler/internal/log"
	"github.com/teslashibe/go-brawler/pkg/channels"
	"github.com/teslashibe/go-brawler/pkg/mixer"
)

// Mode selects who drives.
type Mode int

const (
	// Manual passes the operator's sticks to the mixer.
	Manual Mode = iota
	// Autonomous steers from the vision target.
	Autonomous
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	if m == Autonomous {
		return "autonomous"
	}
	return "manual"
}

// MarshalText encodes the name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Kill reasons.
const (
	ReasonSwitch   = "kill switch"
	ReasonLinkLost = "link lost"
)

// Channels is one tick's view of the channel store. Every value must come
// from the same frame; channels.View is the implementation the loop uses.
type Channels interface {
	Read(index int) uint16
	Link() channels.Freshness
}

// Config maps roles to channel indexes. Defaults follow the FS-i6 Mode 2
// layout: aileron, elevator, throttle, rudder, SwA, SwB.
type Config struct {
	X      int `yaml:"x"`      // Strafe stick
	Y      int `yaml:"y"`      // Forward stick
	Weapon int `yaml:"weapon"` // Weapon throttle (dial semantics)
	Rotate int `yaml:"rotate"` // Turn stick
	Mode   int `yaml:"mode"`   // Manual / autonomous switch
	Kill   int `yaml:"kill"`   // Kill switch

	// LinkLossTicks is how many consecutive ticks without a fresh frame are
	// tolerated before the link is declared lost. Zero disables the check.
	LinkLossTicks int `yaml:"link_loss_ticks"`
}

// DefaultConfig returns the FS-iA6B mapping with a 500ms link timeout at 50Hz.
func DefaultConfig() Config {
	return Config{
		X:             0,
		Y:             1,
		Weapon:        2,
		Rotate:        3,
		Mode:          4,
		Kill:          5,
		LinkLossTicks: 25,
	}
}

// Validate checks every index against the channel count.
func (c Config) Validate(n int) []string {
	var errs []string
	for _, f := range []struct {
		name string
		idx  int
	}{
		{"x", c.X}, {"y", c.Y}, {"weapon", c.Weapon},
		{"rotate", c.Rotate}, {"mode", c.Mode}, {"kill", c.Kill},
	} {
		if f.idx < 0 || f.idx >= n {
			errs = append(errs, fmt.Sprintf("channel %s index %d out of range [0,%d)", f.name, f.idx, n))
		}
	}
	if c.LinkLossTicks < 0 {
		errs = append(errs, "link_loss_ticks must not be negative")
	}
	return errs
}

// Decision is the arbitration result for one tick.
type Decision struct {
	Killed     bool               `json:"killed"`
	KillReason string             `json:"kill_reason,omitempty"`
	Mode       Mode               `json:"mode"`
	Intent     mixer.Intent       `json:"intent"`
	Weapon     float64            `json:"weapon"` // Operator weapon throttle, 0..1
	Freshness  channels.Freshness `json:"freshness"`
	StaleTicks int                `json:"stale_ticks"`
}

// Arbiter derives decisions and owns the kill latch.
//
// Kill is terminal: once tripped by the switch, by link loss or by
// ForceKill, every later decision is killed until the process restarts.
type Arbiter struct {
	cfg Config

	mu         sync.Mutex
	killed     bool
	killReason string
	staleTicks int
}

// New creates an arbiter.
func New(cfg Config) *Arbiter {
	return &Arbiter{cfg: cfg}
}

// Decide reads the channels and returns this tick's decision.
// Call it once per tick, after the store's Tick.
func (a *Arbiter) Decide(ch Channels) Decision {
	fresh := ch.Link()

	a.mu.Lock()
	defer a.mu.Unlock()

	if fresh == channels.Fresh {
		a.staleTicks = 0
	} else {
		a.staleTicks++
	}

	d := Decision{
		Freshness:  fresh,
		StaleTicks: a.staleTicks,
	}

	if !a.killed {
		switch {
		case High(ch.Read(a.cfg.Kill)):
			a.trip(ReasonSwitch)
		case a.cfg.LinkLossTicks > 0 && a.staleTicks > a.cfg.LinkLossTicks:
			a.trip(ReasonLinkLost)
		}
	}
	if a.killed {
		d.Killed = true
		d.KillReason = a.killReason
		return d
	}

	if High(ch.Read(a.cfg.Mode)) {
		d.Mode = Autonomous
	}
	d.Intent = mixer.Intent{
		X:      Normalize(ch.Read(a.cfg.X)),
		Y:      Normalize(ch.Read(a.cfg.Y)),
		Rotate: Normalize(ch.Read(a.cfg.Rotate)),
	}
	d.Weapon = NormalizeDial(ch.Read(a.cfg.Weapon))
	return d
}

// ForceKill trips the latch from outside the control loop, for example an
// operator e-stop. Safe to call from any goroutine.
func (a *Arbiter) ForceKill(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.killed {
		a.trip(reason)
	}
}

// Killed reports the latch state and its reason.
func (a *Arbiter) Killed() (bool, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.killed, a.killReason
}

// trip must be called with mu held.
func (a *Arbiter) trip(reason string) {
	a.killed = true
	a.killReason = reason
	log.Component("arbiter").Warn("kill latched", "reason", reason, "stale_ticks", a.staleTicks)
}
