package ibus

import (
	"encoding/binary"
	"iter"
	"slices"
	"sync/atomic"
)

// Stats counts decoder activity. Safe to read while the decoder runs.
type Stats struct {
	Frames           uint64 `json:"frames"`
	ChecksumFailures uint64 `json:"checksum_failures"`
	DroppedBytes     uint64 `json:"dropped_bytes"`
}

// Decoder turns an arbitrarily chunked byte stream into frames.
//
// It keeps a rolling buffer between calls, so a frame split across reads
// is still decoded. Corrupt input is never an error: the decoder drops one
// byte at a time until it finds a header that verifies.
//
// A Decoder is owned by a single goroutine. Only Stats may be called
// concurrently.
type Decoder struct {
	cfg  Config
	size int
	buf  []byte
	off  int // first unconsumed byte in buf

	frames    atomic.Uint64
	checksums atomic.Uint64
	dropped   atomic.Uint64
}

// NewDecoder creates a decoder for the given frame geometry.
func NewDecoder(cfg Config) *Decoder {
	size := cfg.FrameSize()
	return &Decoder{
		cfg:  cfg,
		size: size,
		buf:  make([]byte, 0, 4*size),
	}
}

// Config returns the frame geometry.
func (d *Decoder) Config() Config {
	return d.cfg
}

// FrameSize returns the bytes per frame.
func (d *Decoder) FrameSize() int {
	return d.size
}

// Buffered returns the number of bytes waiting to be scanned.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off
}

// Stats returns a snapshot of the counters.
func (d *Decoder) Stats() Stats {
	return Stats{
		Frames:           d.frames.Load(),
		ChecksumFailures: d.checksums.Load(),
		DroppedBytes:     d.dropped.Load(),
	}
}

// Feed appends p to the rolling buffer and returns the frames it completes.
//
// The sequence is lazy: each frame is verified when the caller asks for it.
// Breaking out early leaves the remaining bytes buffered; they are scanned
// again by the next Feed. With nothing new and nothing complete buffered the
// sequence is empty.
func (d *Decoder) Feed(p []byte) iter.Seq[Frame] {
	d.compact()
	d.buf = append(d.buf, p...)

	return func(yield func(Frame) bool) {
		for {
			f, ok := d.next()
			if !ok {
				return
			}
			if !yield(f) {
				return
			}
		}
	}
}

// Decode feeds p and collects every frame it completes.
func (d *Decoder) Decode(p []byte) []Frame {
	return slices.Collect(d.Feed(p))
}

// Reset drops all buffered bytes. Counters are kept.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.off = 0
}

// next scans forward to the next verified frame.
func (d *Decoder) next() (Frame, bool) {
	h0, h1 := d.cfg.Header[0], d.cfg.Header[1]

	for {
		window := d.buf[d.off:]
		if len(window) == 0 {
			return Frame{}, false
		}

		if window[0] != h0 {
			d.drop()
			continue
		}
		if len(window) < HeaderSize {
			// Lone first header byte: can't tell yet.
			return Frame{}, false
		}
		if window[1] != h1 {
			d.drop()
			continue
		}
		if len(window) < d.size {
			return Frame{}, false
		}

		sumAt := d.size - ChecksumSize
		want := binary.LittleEndian.Uint16(window[sumAt:])
		if d.cfg.Checksum.Compute(window[:sumAt]) != want {
			// One byte only: a real header may start inside this window.
			d.checksums.Add(1)
			d.drop()
			continue
		}

		values := make([]uint16, d.cfg.Channels)
		for i := range values {
			values[i] = binary.LittleEndian.Uint16(window[HeaderSize+i*SlotSize:])
		}
		d.off += d.size
		d.frames.Add(1)
		return Frame{Channels: values}, true
	}
}

func (d *Decoder) drop() {
	d.off++
	d.dropped.Add(1)
}

// compact moves unconsumed bytes to the front so the buffer stays bounded
// by one partial frame plus the latest chunk.
func (d *Decoder) compact() {
	if d.off == 0 {
		return
	}
	n := copy(d.buf, d.buf[d.off:])
	d.buf = d.buf[:n]
	d.off = 0
}
