package arbiter

import "github.com/teslashibe/go-brawler/pkg/channels"

// Half span of a centered stick in microseconds.
const stickSpan = float64(channels.Max-channels.Neutral)

// Normalize maps a centered stick pulse to [-1, 1]:
// 1000 -> -1, 1500 -> 0, 2000 -> +1. Out of range pulses saturate.
func Normalize(v uint16) float64 {
	n := (float64(v) - float64(channels.Neutral)) / stickSpan
	if n < -1 {
		return -1
	}
	if n > 1 {
		return 1
	}
	return n
}

// NormalizeDial maps a dial or throttle pulse to [0, 1]:
// 1000 -> 0, 2000 -> 1.
func NormalizeDial(v uint16) float64 {
	n := (float64(v) - float64(channels.Min)) / float64(channels.Max-channels.Min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// High reports whether a two-position switch is on. Exactly neutral is off.
func High(v uint16) bool {
	return v > channels.Neutral
}
