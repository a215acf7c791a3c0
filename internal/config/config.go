// Package config loads the robot configuration: defaults, then an optional
// YAML file, then BRAWLER_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-brawler/pkg/actuator"
	"github.com/teslashibe/go-brawler/pkg/arbiter"
	"github.com/teslashibe/go-brawler/pkg/control"
	"github.com/teslashibe/go-brawler/pkg/ibus"
	"github.com/teslashibe/go-brawler/pkg/mixer"
	"github.com/teslashibe/go-brawler/pkg/receiver"
	"github.com/teslashibe/go-brawler/pkg/tracking"
	"github.com/teslashibe/go-brawler/pkg/vision"
)

// DefaultPath is where the run command looks for a config file.
const DefaultPath = "brawler.yaml"

// Config holds all robot configuration.
type Config struct {
	// Receiver link
	Receiver receiver.Config `yaml:"receiver"`
	Frame    FrameConfig     `yaml:"frame"`

	// Channel roles and link-loss timeout
	Channels arbiter.Config `yaml:"channels"`

	// Control loop and autonomous behavior
	Control  control.Config `yaml:"control"`
	Tracking TrackingConfig `yaml:"tracking"`
	Drive    DriveConfig    `yaml:"drive"`
	Vision   VisionConfig   `yaml:"vision"`

	// Dashboard
	Web WebConfig `yaml:"web"`

	// Logging
	Log LogConfig `yaml:"log"`
}

// FrameConfig describes the iBus frame geometry.
type FrameConfig struct {
	Channels int    `yaml:"channels"`
	Checksum string `yaml:"checksum"` // complement or sum
}

// TrackingConfig selects a tuning preset, then applies field overrides.
type TrackingConfig struct {
	Preset          string `yaml:"preset"` // default, slow, aggressive
	tracking.Config `yaml:",inline"`
}

// DriveConfig selects the mixer and the ESC pins.
type DriveConfig struct {
	Layout             string `yaml:"layout"` // xdrive or differential
	actuator.PWMConfig `yaml:",inline"`
}

// VisionConfig enables the camera.
type VisionConfig struct {
	Enabled       bool `yaml:"enabled"`
	vision.Config `yaml:",inline"`
}

// WebConfig configures the dashboard server.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the stock FS-iA6B X-drive configuration.
func Default() *Config {
	return &Config{
		Receiver: receiver.DefaultConfig(),
		Frame: FrameConfig{
			Channels: ibus.DefaultChannels,
			Checksum: ibus.ChecksumComplement.String(),
		},
		Channels: arbiter.DefaultConfig(),
		Control:  control.DefaultConfig(),
		Tracking: TrackingConfig{Preset: "default", Config: tracking.DefaultConfig()},
		Drive:    DriveConfig{Layout: mixer.LayoutXDrive, PWMConfig: actuator.DefaultPWMConfig()},
		Vision:   VisionConfig{Enabled: true, Config: vision.DefaultConfig()},
		Web:      WebConfig{Enabled: true, Addr: ":8080"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error when path is the
// default; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.apply(data); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case os.IsNotExist(err) && path == DefaultPath:
			// Defaults only
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// apply decodes YAML over the current values. A tracking preset is
// applied first so explicit fields in the same file still win.
func (c *Config) apply(data []byte) error {
	var probe struct {
		Tracking struct {
			Preset string `yaml:"preset"`
		} `yaml:"tracking"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return err
	}
	if name := probe.Tracking.Preset; name != "" {
		preset, ok := tracking.Preset(name)
		if !ok {
			return fmt.Errorf("unknown tracking preset %q", name)
		}
		c.Tracking = TrackingConfig{Preset: name, Config: preset}
	}
	return yaml.Unmarshal(data, c)
}

// IBus returns the decoder configuration.
func (c *Config) IBus() (ibus.Config, error) {
	sum, err := ibus.ParseChecksum(c.Frame.Checksum)
	if err != nil {
		return ibus.Config{}, err
	}
	cfg := ibus.DefaultConfig()
	cfg.Channels = c.Frame.Channels
	cfg.Checksum = sum
	return cfg, nil
}

// Validate collects every problem into one error.
func (c *Config) Validate() error {
	var errs []error
	section := func(name string, problems []string) {
		for _, p := range problems {
			errs = append(errs, fmt.Errorf("%s: %s", name, p))
		}
	}

	if ib, err := c.IBus(); err != nil {
		errs = append(errs, fmt.Errorf("frame: %w", err))
	} else if err := ib.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("frame: %w", err))
	}

	section("receiver", c.Receiver.Validate())
	section("channels", c.Channels.Validate(c.Frame.Channels))
	section("control", c.Control.Validate())
	section("tracking", c.Tracking.Validate())

	mx, err := mixer.New(c.Drive.Layout)
	if err != nil {
		errs = append(errs, fmt.Errorf("drive: %w", err))
	} else if len(c.Drive.Pins) < mx.Actuators() {
		errs = append(errs, fmt.Errorf("drive: %s needs %d pins, %d configured", c.Drive.Layout, mx.Actuators(), len(c.Drive.Pins)))
	}
	if c.Drive.Weapon == "" {
		errs = append(errs, errors.New("drive: weapon pin is required"))
	}

	if c.Vision.Enabled {
		section("vision", c.Vision.Validate())
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		errs = append(errs, errors.New("web: addr is required when enabled"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log: unknown level %q", c.Log.Level))
	}

	return errors.Join(errs...)
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
