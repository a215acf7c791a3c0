package tracking

import (
	"math"
	"testing"
)

func TestSteering_TurnsTowardTarget(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		err      float64
		wantSign float64
	}{
		{"far right", 1.0, 1},
		{"slightly right", 0.1, 1},
		{"far left", -1.0, -1},
		{"slightly left", -0.05, -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSteering(cfg)
			out := s.Update(tc.err)
			if out*tc.wantSign <= 0 {
				t.Fatalf("Update(%v) = %v, want sign %v", tc.err, out, tc.wantSign)
			}
			if math.Abs(out) < cfg.MinTurn-1e-12 || math.Abs(out) > cfg.MaxTurn+1e-12 {
				t.Errorf("Update(%v) = %v outside [%v, %v]", tc.err, out, cfg.MinTurn, cfg.MaxTurn)
			}
		})
	}
}

func TestSteering_ProportionalInBand(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSteering(cfg)

	// First update has no derivative term.
	out := s.Update(0.5)
	want := cfg.Kp * 0.5
	if math.Abs(out-want) > 1e-9 {
		t.Errorf("Update(0.5) = %v, want %v", out, want)
	}
}

func TestSteering_DerivativeNeverReverses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Kd = 5.0 // Exaggerated so the D term dominates
	s := NewSteering(cfg)

	s.Update(0.9)
	out := s.Update(0.3) // Error shrinking fast
	if out <= 0 {
		t.Errorf("expected positive turn while target still right, got %v", out)
	}
	if math.Abs(out-cfg.MinTurn) > 1e-9 {
		t.Errorf("expected floor %v, got %v", cfg.MinTurn, out)
	}
}

func TestSteering_ZeroErrorAndReset(t *testing.T) {
	s := NewSteering(DefaultConfig())
	s.Update(0.4)
	if out := s.Update(0); out != 0 {
		t.Errorf("Update(0) = %v, want 0", out)
	}
	s.Reset()
	if s.LastOutput() != 0 {
		t.Errorf("LastOutput after Reset = %v", s.LastOutput())
	}
}

func TestTarget_OffsetAndCentered(t *testing.T) {
	tests := []struct {
		name     string
		target   Target
		offset   int
		centered bool
	}{
		{"dead center", Target{X: 320, FrameWidth: 640}, 0, true},
		{"5px right", Target{X: 325, FrameWidth: 640}, 5, true},
		{"49px left", Target{X: 271, FrameWidth: 640}, -49, true},
		{"on the deadband edge", Target{X: 370, FrameWidth: 640}, 50, false},
		{"far left", Target{X: 10, FrameWidth: 640}, -310, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.target.Offset(); got != tc.offset {
				t.Errorf("Offset = %d, want %d", got, tc.offset)
			}
			if got := tc.target.Centered(50); got != tc.centered {
				t.Errorf("Centered(50) = %v, want %v", got, tc.centered)
			}
		})
	}
}

func TestTarget_Error(t *testing.T) {
	if e := (Target{X: 640, FrameWidth: 640}).Error(); e != 1 {
		t.Errorf("right edge error = %v, want 1", e)
	}
	if e := (Target{X: 0, FrameWidth: 640}).Error(); e != -1 {
		t.Errorf("left edge error = %v, want -1", e)
	}
	if e := (Target{X: 5}).Error(); e != 0 {
		t.Errorf("zero-width frame error = %v, want 0", e)
	}
}
