// Package control runs the fixed-rate loop that turns channel values and
// the vision target into actuator commands.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-brawler/internal/log"
	"github.com/teslashibe/go-brawler/pkg/actuator"
	"github.com/teslashibe/go-brawler/pkg/arbiter"
	"github.com/teslashibe/go-brawler/pkg/channels"
	"github.com/teslashibe/go-brawler/pkg/mixer"
	"github.com/teslashibe/go-brawler/pkg/receiver"
	"github.com/teslashibe/go-brawler/pkg/tracking"
)

// writeLogEvery limits how often actuator write failures are logged.
const writeLogEvery = 5 * time.Second

// TargetTracker publishes the latest opponent estimate. Target must not
// block.
type TargetTracker interface {
	Target() (tracking.Target, bool)
}

// Hardware holds the handles the loop shuts down on exit, in order:
// actuators are zeroed and closed first, then the link.
type Hardware struct {
	Actuators actuator.Bank
	Link      io.Closer // Receiver transport, may be nil
}

// Deps are the loop's collaborators.
type Deps struct {
	Store    *channels.Store
	Arbiter  *arbiter.Arbiter
	Tracker  TargetTracker // nil means no camera: autonomous always searches
	Mixer    mixer.Mixer
	Tracking tracking.Config
	Hardware Hardware
}

// Status is a snapshot of one tick for logs and the dashboard.
type Status struct {
	RunID       string              `json:"run_id"`
	Tick        uint64              `json:"tick"`
	Time        time.Time           `json:"time"`
	State       State               `json:"state"`
	Mode        arbiter.Mode        `json:"mode"`
	KillReason  string              `json:"kill_reason,omitempty"`
	Channels    []uint16            `json:"channels"`
	Freshness   channels.Freshness  `json:"freshness"`
	StaleTicks  int                 `json:"stale_ticks"`
	Intent      mixer.Intent        `json:"intent"`
	Motors      []float64           `json:"motors"`
	Weapon      float64             `json:"weapon"`
	Target      *tracking.Target    `json:"target,omitempty"`
	Link        *receiver.LinkStats `json:"link,omitempty"`
	WriteErrors uint64              `json:"write_errors"`
}

// Loop is the control state machine. Step is called from a single
// goroutine; Status may be read from anywhere.
type Loop struct {
	cfg      Config
	tcfg     tracking.Config
	store    *channels.Store
	arbiter  *arbiter.Arbiter
	tracker  TargetTracker
	mixer    mixer.Mixer
	hw       Hardware
	steering *tracking.Steering
	log      *slog.Logger
	runID    string

	// LinkStats, if set, is sampled into every Status.
	LinkStats func() receiver.LinkStats
	// OnStatus, if set, receives every PublishEvery-th status and every
	// state change. It runs on the loop goroutine and must not block.
	OnStatus func(Status)

	tick         uint64
	state        State
	writeErrors  uint64
	lastWriteLog time.Time

	mu   sync.RWMutex
	last Status
}

// New validates the wiring and returns a loop in IDLE.
func New(cfg Config, deps Deps) (*Loop, error) {
	if deps.Store == nil || deps.Arbiter == nil || deps.Mixer == nil || deps.Hardware.Actuators == nil {
		return nil, errors.New("control: store, arbiter, mixer and actuators are required")
	}
	if have, want := deps.Hardware.Actuators.Actuators(), deps.Mixer.Actuators(); have < want {
		return nil, fmt.Errorf("control: %s mixer needs %d actuators, bank has %d", deps.Mixer.Name(), want, have)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("control: invalid config: %v", errs)
	}

	runID := uuid.New().String()
	l := &Loop{
		cfg:      cfg,
		tcfg:     deps.Tracking,
		store:    deps.Store,
		arbiter:  deps.Arbiter,
		tracker:  deps.Tracker,
		mixer:    deps.Mixer,
		hw:       deps.Hardware,
		steering: tracking.NewSteering(deps.Tracking),
		log:      log.Component("control").With("run_id", runID),
		runID:    runID,
		state:    Idle,
	}
	l.last = Status{RunID: runID, State: Idle}
	return l, nil
}

// RunID identifies this process run in logs and status messages
func (l *Loop) RunID() string {
	return l.runID
}

// State returns the state chosen by the most recent tick
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last.State
}

// Status returns the most recent tick's status
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}

// Step runs one control tick.
func (l *Loop) Step() Status {
	view := l.store.Tick()
	d := l.arbiter.Decide(view)
	l.tick++

	var (
		state  State
		intent mixer.Intent
		weapon float64
		target *tracking.Target
	)

	switch {
	case d.Killed:
		state = Killed

	case d.Mode == arbiter.Manual:
		state = ManualDrive
		intent = d.Intent
		weapon = d.Weapon

	default:
		var t tracking.Target
		ok := false
		if l.tracker != nil {
			t, ok = l.tracker.Target()
		}
		switch {
		case !ok:
			state = Searching
			intent.Rotate = l.tcfg.SearchTurn
		case t.Centered(l.tcfg.DeadbandPx):
			state = Engaging
			intent.Y = l.tcfg.EngageSpeed
			weapon = l.cfg.AutoWeapon
			target = &t
		default:
			state = Tracking
			intent.Rotate = l.steering.Update(t.Error())
			weapon = l.cfg.AutoWeapon
			target = &t
		}
	}
	if state != Tracking {
		l.steering.Reset()
	}

	var motors []float64
	if state == Killed {
		motors = make([]float64, l.mixer.Actuators())
		weapon = 0
	} else {
		motors = l.mixer.Mix(intent.Clamp())
	}
	l.write(motors, weapon)

	st := Status{
		RunID:       l.runID,
		Tick:        l.tick,
		Time:        time.Now(),
		State:       state,
		Mode:        d.Mode,
		KillReason:  d.KillReason,
		Channels:    view.Values,
		Freshness:   d.Freshness,
		StaleTicks:  d.StaleTicks,
		Intent:      intent,
		Motors:      motors,
		Weapon:      weapon,
		Target:      target,
		WriteErrors: l.writeErrors,
	}
	if l.LinkStats != nil {
		ls := l.LinkStats()
		st.Link = &ls
	}

	changed := state != l.state
	if changed {
		l.log.Info("state change", "from", l.state, "to", state, "reason", d.KillReason)
		l.state = state
	}

	l.mu.Lock()
	l.last = st
	l.mu.Unlock()

	if l.cfg.HeartbeatEvery > 0 && l.tick%uint64(l.cfg.HeartbeatEvery) == 0 {
		l.log.Info("heartbeat",
			"tick", l.tick,
			"state", state,
			"freshness", d.Freshness,
			"motors", motors,
			"weapon", weapon,
			"write_errors", l.writeErrors,
		)
	}
	if l.OnStatus != nil && (changed || (l.cfg.PublishEvery > 0 && l.tick%uint64(l.cfg.PublishEvery) == 0)) {
		l.OnStatus(st)
	}
	return st
}

// write sends one tick's commands. Failures are counted, logged at most
// every writeLogEvery, and never stop the loop.
func (l *Loop) write(motors []float64, weapon float64) {
	err := actuator.SetAll(l.hw.Actuators, motors, weapon)
	if err == nil {
		return
	}
	l.writeErrors++
	if now := time.Now(); now.Sub(l.lastWriteLog) >= writeLogEvery {
		l.log.Error("actuator write failed", "err", err, "write_errors", l.writeErrors)
		l.lastWriteLog = now
	}
}

// Run ticks until ctx is cancelled, then shuts the hardware down: the
// tick in progress finishes, every actuator is zeroed and closed, and the
// link is closed last.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Tick)
	defer ticker.Stop()

	l.log.Info("control loop started", "tick", l.cfg.Tick, "mixer", l.mixer.Name())
	for {
		select {
		case <-ctx.Done():
			return l.shutdown()
		case <-ticker.C:
			l.Step()
		}
	}
}

func (l *Loop) shutdown() error {
	var errs []error
	if err := actuator.Stop(l.hw.Actuators); err != nil {
		errs = append(errs, fmt.Errorf("zero actuators: %w", err))
	}
	if err := l.hw.Actuators.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close actuators: %w", err))
	}
	if l.hw.Link != nil {
		if err := l.hw.Link.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close link: %w", err))
		}
	}
	l.log.Info("control loop stopped", "ticks", l.tick, "write_errors", l.writeErrors)
	return errors.Join(errs...)
}
