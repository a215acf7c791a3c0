package vision

import (
	"sync"

	"gocv.io/x/gocv"
)

// MotionDetector treats the largest moving region as the opponent. It
// only works with a fixed camera; the background model needs a few
// frames to settle after start.
type MotionDetector struct {
	threshold float32
	minArea   float64
	morph     morphology

	mu   sync.Mutex
	mog  gocv.BackgroundSubtractorMOG2
	fg   gocv.Mat
	mask gocv.Mat
}

// NewMotionDetector creates a MOG2 background-subtraction detector
func NewMotionDetector(cfg Config) *MotionDetector {
	return &MotionDetector{
		threshold: float32(cfg.MotionThreshold),
		minArea:   cfg.MinArea,
		morph:     newMorphology(cfg),
		mog:       gocv.NewBackgroundSubtractorMOG2(),
		fg:        gocv.NewMat(),
		mask:      gocv.NewMat(),
	}
}

// Detect updates the background model and returns the largest foreground blob
func (d *MotionDetector) Detect(img gocv.Mat) (Detection, bool, error) {
	if img.Empty() {
		return Detection{}, false, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.mog.Apply(img, &d.fg)
	// MOG2 marks shadows as 127; drop them.
	gocv.Threshold(d.fg, &d.mask, d.threshold, 255, gocv.ThresholdBinary)
	d.morph.apply(&d.mask)

	det, ok := largestBlob(d.mask, d.minArea)
	return det, ok, nil
}

// Close releases the background model
func (d *MotionDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mog.Close()
	d.fg.Close()
	d.mask.Close()
	return d.morph.Close()
}
