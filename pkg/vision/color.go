package vision

import (
	"sync"

	"gocv.io/x/gocv"
)

// ColorDetector thresholds the frame in HSV and takes the largest blob.
type ColorDetector struct {
	lower   gocv.Scalar
	upper   gocv.Scalar
	minArea float64
	morph   morphology

	mu   sync.Mutex // Protects the scratch Mats
	hsv  gocv.Mat
	mask gocv.Mat
}

// NewColorDetector creates a detector for the HSV range in cfg
func NewColorDetector(cfg Config) *ColorDetector {
	return &ColorDetector{
		lower:   gocv.NewScalar(cfg.ColorLower[0], cfg.ColorLower[1], cfg.ColorLower[2], 0),
		upper:   gocv.NewScalar(cfg.ColorUpper[0], cfg.ColorUpper[1], cfg.ColorUpper[2], 0),
		minArea: cfg.MinArea,
		morph:   newMorphology(cfg),
		hsv:     gocv.NewMat(),
		mask:    gocv.NewMat(),
	}
}

// Detect finds the largest region inside the color range
func (d *ColorDetector) Detect(img gocv.Mat) (Detection, bool, error) {
	if img.Empty() {
		return Detection{}, false, ErrEmptyFrame
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	gocv.CvtColor(img, &d.hsv, gocv.ColorBGRToHSV)
	gocv.InRangeWithScalar(d.hsv, d.lower, d.upper, &d.mask)
	d.morph.apply(&d.mask)

	det, ok := largestBlob(d.mask, d.minArea)
	return det, ok, nil
}

// Close releases the scratch buffers
func (d *ColorDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hsv.Close()
	d.mask.Close()
	return d.morph.Close()
}
