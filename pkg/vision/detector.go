package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when a detector is handed an empty Mat.
var ErrEmptyFrame = errors.New("vision: empty frame")

// Detection is the opponent's bounding box in pixels.
type Detection struct {
	Box        image.Rectangle
	Area       float64 // Contour area, or box area for model detections
	Confidence float64 // 1 for blob detectors
}

// Center returns the center point of the bounding box
func (d Detection) Center() image.Point {
	return image.Pt(d.Box.Min.X+d.Box.Dx()/2, d.Box.Min.Y+d.Box.Dy()/2)
}

// Detector finds at most one opponent in a BGR frame.
type Detector interface {
	// Detect returns the best detection and whether one was found
	Detect(img gocv.Mat) (Detection, bool, error)

	// Close releases resources
	Close() error
}

// New builds the detector named by cfg.Detector.
func New(cfg Config) (Detector, error) {
	switch cfg.Detector {
	case KindColor, "":
		return NewColorDetector(cfg), nil
	case KindMotion:
		return NewMotionDetector(cfg), nil
	case KindModel:
		return NewModelDetector(cfg)
	}
	return nil, fmt.Errorf("vision: unknown detector %q", cfg.Detector)
}

// morphology erodes then dilates a binary mask in place to knock out
// speckle and close small holes.
type morphology struct {
	kernel gocv.Mat
	erode  int
	dilate int
}

func newMorphology(cfg Config) morphology {
	size := cfg.KernelSize
	if size < 1 {
		size = 1
	}
	return morphology{
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size)),
		erode:  cfg.Erode,
		dilate: cfg.Dilate,
	}
}

func (m morphology) apply(mask *gocv.Mat) {
	for i := 0; i < m.erode; i++ {
		gocv.Erode(*mask, mask, m.kernel)
	}
	for i := 0; i < m.dilate; i++ {
		gocv.Dilate(*mask, mask, m.kernel)
	}
}

func (m morphology) Close() error {
	return m.kernel.Close()
}

// largestBlob returns the bounding box of the largest external contour in
// a binary mask, if its area reaches minArea.
func largestBlob(mask gocv.Mat, minArea float64) (Detection, bool) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	best := -1
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if best < 0 || area > bestArea {
			best = i
			bestArea = area
		}
	}
	if best < 0 || bestArea < minArea {
		return Detection{}, false
	}

	return Detection{
		Box:        gocv.BoundingRect(contours.At(best)),
		Area:       bestArea,
		Confidence: 1,
	}, true
}
