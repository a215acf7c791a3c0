package receiver

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Replay plays back a raw capture of the receiver UART at roughly the
// rate the receiver sends it.
type Replay struct {
	r      io.Reader
	chunk  int
	period time.Duration
	loop   bool
	next   time.Time
}

// NewReplay reads chunk bytes every period from r. With loop set and an
// io.Seeker underneath, the capture restarts at EOF.
func NewReplay(r io.Reader, chunk int, period time.Duration, loop bool) *Replay {
	if chunk <= 0 {
		chunk = 32
	}
	return &Replay{r: r, chunk: chunk, period: period, loop: loop}
}

// OpenReplay opens a capture file. FS-iA6B sends a frame about every 7 ms.
func OpenReplay(path string, frameSize int, loop bool) (*Replay, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture: %w", err)
	}
	return NewReplay(f, frameSize, 7*time.Millisecond, loop), f, nil
}

// Read returns at most one chunk, sleeping to keep the pace.
func (r *Replay) Read(p []byte) (int, error) {
	if r.period > 0 {
		if wait := time.Until(r.next); wait > 0 {
			time.Sleep(wait)
		}
		r.next = time.Now().Add(r.period)
	}

	if len(p) > r.chunk {
		p = p[:r.chunk]
	}
	n, err := r.r.Read(p)
	if err == io.EOF && r.loop {
		if s, ok := r.r.(io.Seeker); ok {
			if _, serr := s.Seek(0, io.SeekStart); serr != nil {
				return n, serr
			}
			return n, nil
		}
	}
	return n, err
}
