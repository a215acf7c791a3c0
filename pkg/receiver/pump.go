package receiver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-brawler/internal/log"
	"github.com/teslashibe/go-brawler/pkg/channels"
	"github.com/teslashibe/go-brawler/pkg/ibus"
)

// LinkStats describes the health of the receiver link.
type LinkStats struct {
	ibus.Stats
	Bytes           uint64 `json:"bytes"`
	TransportErrors uint64 `json:"transport_errors"`
	Rejected        uint64 `json:"rejected"` // Frames with the wrong slot count
}

// Pump is the single writer of a channel store: it reads the transport,
// decodes frames and applies them.
type Pump struct {
	src     io.Reader
	dec     *ibus.Decoder
	store   *channels.Store
	backoff time.Duration
	log     *slog.Logger
	buf     []byte

	bytes  atomic.Uint64
	errors atomic.Uint64
}

// NewPump connects src to store through dec.
func NewPump(src io.Reader, dec *ibus.Decoder, store *channels.Store, backoff time.Duration) *Pump {
	return &Pump{
		src:     src,
		dec:     dec,
		store:   store,
		backoff: backoff,
		log:     log.Component("receiver"),
		buf:     make([]byte, 4*dec.FrameSize()),
	}
}

// Run pumps until ctx is cancelled or the source reaches EOF (a finished
// replay). Transport errors are logged and retried; the control loop
// only sees them as stale channels.
func (p *Pump) Run(ctx context.Context) error {
	var lastLog time.Time
	for ctx.Err() == nil {
		n, err := p.src.Read(p.buf)
		if n > 0 {
			p.Poll(p.buf[:n])
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			p.log.Info("receiver stream ended", "stats", p.Stats())
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return nil
		}

		count := p.errors.Add(1)
		if time.Since(lastLog) > 5*time.Second {
			p.log.Warn("transport error", "err", err, "errors", count)
			lastLog = time.Now()
		}
		select {
		case <-ctx.Done():
		case <-time.After(p.backoff):
		}
	}
	return nil
}

// Poll feeds p through the decoder and applies every frame. It returns
// the number of frames applied.
func (p *Pump) Poll(b []byte) int {
	p.bytes.Add(uint64(len(b)))
	applied := 0
	for frame := range p.dec.Feed(b) {
		if p.store.Apply(frame) {
			applied++
		}
	}
	return applied
}

// Stats returns the link counters
func (p *Pump) Stats() LinkStats {
	return LinkStats{
		Stats:           p.dec.Stats(),
		Bytes:           p.bytes.Load(),
		TransportErrors: p.errors.Load(),
		Rejected:        p.store.Rejected(),
	}
}
