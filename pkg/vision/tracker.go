package vision

import (
	"context"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-brawler/internal/log"
	"github.com/teslashibe/go-brawler/pkg/tracking"
)

// TrackerStats counts frames seen by the tracker.
type TrackerStats struct {
	Frames     uint64 `json:"frames"`
	Detections uint64 `json:"detections"`
	ReadFails  uint64 `json:"read_fails"`
	Errors     uint64 `json:"errors"`
}

// Tracker reads frames on its own goroutine and publishes the latest
// smoothed target. Target never blocks on the camera.
type Tracker struct {
	source     FrameSource
	detector   Detector
	perception *tracking.Perception
	maxAge     time.Duration
	frameEvery int
	quality    int
	log        *slog.Logger

	// OnFrame receives an annotated JPEG every FrameEvery frames.
	// Set before Run.
	OnFrame func(jpeg []byte)

	// now is replaced in tests
	now func() time.Time

	mu     sync.RWMutex
	target tracking.Target
	found  bool
	stats  TrackerStats
}

// NewTracker wires a frame source to a detector
func NewTracker(source FrameSource, detector Detector, cfg Config, tcfg tracking.Config) *Tracker {
	return &Tracker{
		source:     source,
		detector:   detector,
		perception: tracking.NewPerception(tcfg),
		maxAge:     tcfg.MaxAge,
		frameEvery: cfg.FrameEvery,
		quality:    cfg.Quality,
		log:        log.Component("vision"),
		now:        time.Now,
	}
}

// Run reads and processes frames until ctx is cancelled. Camera hiccups
// are retried; Run only returns when ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	img := gocv.NewMat()
	defer img.Close()

	backoff := 10 * time.Millisecond
	for ctx.Err() == nil {
		if !t.source.Read(&img) || img.Empty() {
			t.mu.Lock()
			t.stats.ReadFails++
			fails := t.stats.ReadFails
			t.mu.Unlock()
			if fails%100 == 1 {
				t.log.Warn("camera read failed", "fails", fails)
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = 10 * time.Millisecond
		t.Process(img)
	}
	return nil
}

// Process runs detection on one frame and updates the published target.
func (t *Tracker) Process(img gocv.Mat) {
	det, found, err := t.detector.Detect(img)
	if err != nil {
		t.mu.Lock()
		t.stats.Errors++
		t.mu.Unlock()
		t.log.Debug("detect failed", "err", err)
		found = false
	}

	raw := tracking.Target{FrameWidth: img.Cols(), FrameHeight: img.Rows()}
	if found {
		c := det.Center()
		raw.X, raw.Y = c.X, c.Y
	}
	smoothed, ok := t.perception.Observe(raw, found)

	t.mu.Lock()
	t.stats.Frames++
	if found {
		t.stats.Detections++
	}
	frame := t.stats.Frames
	if ok {
		if found {
			smoothed.Seen = t.now()
		}
		t.target = smoothed
	}
	t.found = ok
	t.mu.Unlock()

	if t.OnFrame != nil && t.frameEvery > 0 && frame%uint64(t.frameEvery) == 0 {
		t.publishFrame(img, det, found)
	}
}

// Target returns the latest target if one is in view and fresh
func (t *Tracker) Target() (tracking.Target, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.found {
		return tracking.Target{}, false
	}
	if t.maxAge > 0 && t.now().Sub(t.target.Seen) > t.maxAge {
		return tracking.Target{}, false
	}
	return t.target, true
}

// Stats returns a copy of the frame counters
func (t *Tracker) Stats() TrackerStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// Close releases the detector and the frame source
func (t *Tracker) Close() error {
	derr := t.detector.Close()
	if err := t.source.Close(); err != nil {
		return err
	}
	return derr
}

func (t *Tracker) publishFrame(img gocv.Mat, det Detection, found bool) {
	annotated := img.Clone()
	defer annotated.Close()
	if found {
		gocv.Rectangle(&annotated, det.Box, color.RGBA{0, 255, 0, 0}, 2)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, annotated, []int{gocv.IMWriteJpegQuality, t.quality})
	if err != nil {
		t.log.Debug("jpeg encode failed", "err", err)
		return
	}
	defer buf.Close()

	// GetBytes aliases C memory; copy before the buffer is closed.
	jpeg := append([]byte(nil), buf.GetBytes()...)
	t.OnFrame(jpeg)
}
