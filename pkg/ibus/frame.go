// Package ibus decodes the FlySky iBus servo stream into channel frames.
//
// An iBus frame is a fixed-size window:
//
//	header(2) | channel[0..N-1] (uint16 LE each) | checksum (uint16 LE)
//
// The FS-iA6B sends 14 channel slots at 115200 8N1 roughly every 7ms,
// of which only the first 6 carry stick and switch positions.
package ibus

import (
	"encoding/binary"
	"fmt"
)

// Wire layout sizes.
const (
	HeaderSize   = 2
	ChecksumSize = 2
	SlotSize     = 2

	// DefaultChannels is the slot count of a stock FS-iA6B frame (32 bytes).
	DefaultChannels = 14

	// MaxChannels bounds the configurable slot count.
	MaxChannels = 32
)

// DefaultHeader is the length byte (0x20 = 32) followed by the servo command byte.
var DefaultHeader = [HeaderSize]byte{0x20, 0x40}

// Checksum selects the integrity check used by the receiver.
type Checksum int

const (
	// ChecksumComplement is 0xFFFF minus the sum of all preceding bytes.
	// This is what FlySky receivers put on the wire.
	ChecksumComplement Checksum = iota

	// ChecksumSum is the plain sum of all preceding bytes modulo 65536.
	ChecksumSum
)

// String returns the config name of the checksum.
func (c Checksum) String() string {
	switch c {
	case ChecksumComplement:
		return "complement"
	case ChecksumSum:
		return "sum"
	default:
		return fmt.Sprintf("checksum(%d)", int(c))
	}
}

// ParseChecksum maps a config name to a Checksum.
func ParseChecksum(name string) (Checksum, error) {
	switch name {
	case "", "complement", "ibus":
		return ChecksumComplement, nil
	case "sum":
		return ChecksumSum, nil
	default:
		return 0, fmt.Errorf("unknown checksum %q (want complement or sum)", name)
	}
}

// Compute returns the checksum of data.
func (c Checksum) Compute(data []byte) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	if c == ChecksumComplement {
		return 0xFFFF - sum
	}
	return sum
}

// Config describes the frame geometry.
type Config struct {
	Channels int              // Channel slots per frame
	Checksum Checksum         // Integrity check
	Header   [HeaderSize]byte // Frame marker
}

// DefaultConfig returns the FS-iA6B wire format.
func DefaultConfig() Config {
	return Config{
		Channels: DefaultChannels,
		Checksum: ChecksumComplement,
		Header:   DefaultHeader,
	}
}

// FrameSize returns the total bytes of one frame.
func (c Config) FrameSize() int {
	return HeaderSize + c.Channels*SlotSize + ChecksumSize
}

// Validate checks the slot count.
func (c Config) Validate() error {
	if c.Channels < 1 || c.Channels > MaxChannels {
		return fmt.Errorf("ibus: channels must be between 1 and %d, got %d", MaxChannels, c.Channels)
	}
	return nil
}

// Frame is one checksum-verified set of channel values.
type Frame struct {
	Channels []uint16
}

// Encode builds a valid frame carrying values. Missing slots are sent as 0,
// extra values are dropped.
func Encode(cfg Config, values []uint16) []byte {
	out := make([]byte, cfg.FrameSize())
	copy(out, cfg.Header[:])
	for i := 0; i < cfg.Channels && i < len(values); i++ {
		binary.LittleEndian.PutUint16(out[HeaderSize+i*SlotSize:], values[i])
	}
	sumAt := len(out) - ChecksumSize
	binary.LittleEndian.PutUint16(out[sumAt:], cfg.Checksum.Compute(out[:sumAt]))
	return out
}
