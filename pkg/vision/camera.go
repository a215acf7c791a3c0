package vision

import (
	"fmt"

	"gocv.io/x/gocv"
)

// FrameSource yields BGR frames. Read returns false when no frame was
// available.
type FrameSource interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Camera is a FrameSource backed by an OpenCV VideoCapture.
type Camera struct {
	capture *gocv.VideoCapture
}

// OpenCamera opens cfg.Device and requests the configured resolution.
// The driver may pick a different mode; detectors work in whatever size
// frames arrive.
func OpenCamera(cfg Config) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", cfg.Device, err)
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	if cfg.Framerate > 0 {
		capture.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}
	return &Camera{capture: capture}, nil
}

// Read grabs the next frame into m
func (c *Camera) Read(m *gocv.Mat) bool {
	return c.capture.Read(m)
}

// Close releases the device
func (c *Camera) Close() error {
	return c.capture.Close()
}
