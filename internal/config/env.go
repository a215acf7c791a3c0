package config

import (
	"fmt"
	"os"
	"strconv"
)

// applyEnvOverrides lets a deployment change the common knobs without
// editing the file.
func (c *Config) applyEnvOverrides() error {
	if port := os.Getenv("BRAWLER_PORT"); port != "" {
		c.Receiver.Port = port
	}
	if val := os.Getenv("BRAWLER_BAUD"); val != "" {
		baud, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("BRAWLER_BAUD: %w", err)
		}
		c.Receiver.Baud = baud
	}
	if sum := os.Getenv("BRAWLER_CHECKSUM"); sum != "" {
		c.Frame.Checksum = sum
	}
	if layout := os.Getenv("BRAWLER_LAYOUT"); layout != "" {
		c.Drive.Layout = layout
	}
	if level := os.Getenv("BRAWLER_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if addr := os.Getenv("BRAWLER_WEB_ADDR"); addr != "" {
		c.Web.Addr = addr
	}
	if val := os.Getenv("BRAWLER_VISION_ENABLED"); val != "" {
		on, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("BRAWLER_VISION_ENABLED: %w", err)
		}
		c.Vision.Enabled = on
	}
	if dev := os.Getenv("BRAWLER_CAMERA"); dev != "" {
		c.Vision.Device = dev
	}
	if det := os.Getenv("BRAWLER_DETECTOR"); det != "" {
		c.Vision.Detector = det
	}
	return nil
}
