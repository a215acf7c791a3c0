// Package channels holds the latest verified RC channel values.
//
// The receiver pump is the only writer. Every applied frame replaces an
// immutable snapshot through an atomic pointer swap, so readers never see a
// frame half applied.
package channels

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-brawler/pkg/ibus"
)

// Nominal pulse range in microseconds.
const (
	Min     uint16 = 1000
	Max     uint16 = 2000
	Neutral uint16 = 1500
)

// Freshness tells downstream logic whether the link is alive.
type Freshness int32

const (
	// Never means no valid frame has arrived since start.
	Never Freshness = iota
	// Fresh means a frame was applied since the previous tick.
	Fresh
	// Stale means the values are carried over from an earlier tick.
	Stale
)

// String returns the lowercase name.
func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "never"
	}
}

// MarshalText encodes the name, so JSON shows "fresh" rather than 1.
func (f Freshness) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Snapshot is one applied frame.
type Snapshot struct {
	Values  []uint16  // Raw values as received
	Seq     uint64    // Frames applied so far
	Updated time.Time // When the frame was applied
}

// View is what a control tick sees.
type View struct {
	Values    []uint16  `json:"values"` // Clamped to [Min, Max]
	Freshness Freshness `json:"freshness"`
	Seq       uint64    `json:"seq"`
	Updated   time.Time `json:"updated"`
}

// Read returns channel i from the view, or Neutral for an unknown index.
func (v View) Read(i int) uint16 {
	if i < 0 || i >= len(v.Values) {
		return Neutral
	}
	return v.Values[i]
}

// Link returns the view's freshness. Every channel in a view comes from
// the same frame, so they share it.
func (v View) Link() Freshness {
	return v.Freshness
}

// Clamp restricts v to the nominal pulse range.
func Clamp(v uint16) uint16 {
	if v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return v
}

// Store maps channel index to last-known-good value.
type Store struct {
	n   int
	cur atomic.Pointer[Snapshot]

	last atomic.Pointer[View] // Returned by the most recent Tick

	tickMu  sync.Mutex
	tickSeq uint64 // Seq observed by the previous Tick

	rejected atomic.Uint64
}

// NewStore creates a store with n channels, all neutral and never set.
func NewStore(n int) *Store {
	s := &Store{n: n}
	values := make([]uint16, n)
	for i := range values {
		values[i] = Neutral
	}
	s.cur.Store(&Snapshot{Values: values})
	s.last.Store(&View{Values: slices.Clone(values), Freshness: Never})
	return s
}

// Len returns the channel count.
func (s *Store) Len() int {
	return s.n
}

// Apply replaces every channel with the frame's values.
// A frame with the wrong slot count is rejected whole and Apply returns false.
func (s *Store) Apply(f ibus.Frame) bool {
	if len(f.Channels) != s.n {
		s.rejected.Add(1)
		return false
	}
	values := make([]uint16, s.n)
	copy(values, f.Channels)

	prev := s.cur.Load()
	s.cur.Store(&Snapshot{
		Values:  values,
		Seq:     prev.Seq + 1,
		Updated: time.Now(),
	})
	return true
}

// Rejected returns how many frames were refused for a slot count mismatch.
func (s *Store) Rejected() uint64 {
	return s.rejected.Load()
}

// Read returns channel i clamped to range, or Neutral for an unknown index.
func (s *Store) Read(i int) uint16 {
	return Clamp(s.Raw(i))
}

// Raw returns channel i as received, or Neutral for an unknown index.
func (s *Store) Raw(i int) uint16 {
	if i < 0 || i >= s.n {
		return Neutral
	}
	return s.cur.Load().Values[i]
}

// Freshness reports the link state as of the last Tick. All channels share
// it since frames are applied whole.
func (s *Store) Freshness(i int) Freshness {
	return s.last.Load().Freshness
}

// Last returns the view handed out by the most recent Tick. Callers must
// not modify Values.
func (s *Store) Last() View {
	return *s.last.Load()
}

// Snapshot returns the latest applied frame. Callers must not modify Values.
func (s *Store) Snapshot() Snapshot {
	return *s.cur.Load()
}

// Tick marks the start of a control tick and returns the clamped view.
// It should be called once per tick by the control loop.
func (s *Store) Tick() View {
	snap := s.cur.Load()

	s.tickMu.Lock()
	var f Freshness
	switch {
	case snap.Seq == 0:
		f = Never
	case snap.Seq != s.tickSeq:
		f = Fresh
	default:
		f = Stale
	}
	s.tickSeq = snap.Seq
	s.tickMu.Unlock()

	values := make([]uint16, len(snap.Values))
	for i, v := range snap.Values {
		values[i] = Clamp(v)
	}
	view := View{
		Values:    values,
		Freshness: f,
		Seq:       snap.Seq,
		Updated:   snap.Updated,
	}
	s.last.Store(&view)
	return view
}
