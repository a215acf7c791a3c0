// Package vision finds the opponent in camera frames and publishes its
// position as a tracking.Target.
package vision

import (
	"fmt"
	"time"
)

// Detector kinds accepted by New.
const (
	KindColor  = "color"
	KindMotion = "motion"
	KindModel  = "model"
)

// HSV is an OpenCV HSV triple (H 0-179, S and V 0-255).
type HSV [3]float64

// Config holds camera and detector settings.
type Config struct {
	// Camera
	Device    string `yaml:"device"` // Index ("0") or path/URL for OpenVideoCapture
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Framerate int    `yaml:"framerate"`
	Quality   int    `yaml:"quality"` // JPEG quality for dashboard frames

	// Detector selection
	Detector string `yaml:"detector"` // color, motion or model

	// Blob detectors
	ColorLower HSV     `yaml:"color_lower"`
	ColorUpper HSV     `yaml:"color_upper"`
	MinArea    float64 `yaml:"min_area"`    // Contours smaller than this are noise (px²)
	KernelSize int     `yaml:"kernel_size"` // Square morphology kernel
	Erode      int     `yaml:"erode"`
	Dilate     int     `yaml:"dilate"`

	// Background subtraction
	MotionThreshold float64 `yaml:"motion_threshold"` // Foreground mask cutoff (0-255)

	// ONNX model
	ModelPath        string  `yaml:"model_path"`
	ConfidenceThresh float32 `yaml:"confidence"`
	NMSThresh        float32 `yaml:"nms"`
	InputSize        int     `yaml:"input_size"`

	// Publishing
	FrameEvery int `yaml:"frame_every"` // Encode every Nth frame for the dashboard, 0 = never
}

// DefaultConfig returns the 640x480 red-opponent setup.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   70,

		Detector: KindColor,

		ColorLower: HSV{0, 120, 70},
		ColorUpper: HSV{10, 255, 255},
		MinArea:    100,
		KernelSize: 5,
		Erode:      1,
		Dilate:     2,

		MotionThreshold: 200,

		ModelPath:        "models/opponent.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputSize:        640,

		FrameEvery: 3,
	}
}

// FramePeriod is the nominal time between frames.
func (c *Config) FramePeriod() time.Duration {
	if c.Framerate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.Framerate)
}

// Validate returns a list of problems, or nil if the config is usable.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < 160 || c.Height < 120 {
		errors = append(errors, "resolution must be at least 160x120")
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	switch c.Detector {
	case KindColor:
		for i := range c.ColorLower {
			if c.ColorLower[i] > c.ColorUpper[i] {
				errors = append(errors, "color_lower must not exceed color_upper")
				break
			}
		}
	case KindMotion:
		if c.MotionThreshold <= 0 || c.MotionThreshold > 255 {
			errors = append(errors, "motion_threshold must be in (0, 255]")
		}
	case KindModel:
		if c.ModelPath == "" {
			errors = append(errors, "model_path is required for the model detector")
		}
		if c.InputSize <= 0 {
			errors = append(errors, "input_size must be positive")
		}
	default:
		errors = append(errors, fmt.Sprintf("unknown detector %q", c.Detector))
	}

	if c.MinArea < 0 {
		errors = append(errors, "min_area must not be negative")
	}
	if c.KernelSize < 1 {
		errors = append(errors, "kernel_size must be at least 1")
	}
	if c.Erode < 0 || c.Dilate < 0 {
		errors = append(errors, "erode and dilate must not be negative")
	}
	if c.FrameEvery < 0 {
		errors = append(errors, "frame_every must not be negative")
	}

	return errors
}
