// Package camera opens the video source frames are read from: a webcam by
// index or a recorded video file.
package camera

import (
	"fmt"
	"strconv"
)

// Config describes the video source.
type Config struct {
	// Device is a camera index ("0") or a video file path.
	Device string `yaml:"device" json:"device"`

	Width  int `yaml:"width" json:"width"`   // requested frame width, 0 keeps the driver default
	Height int `yaml:"height" json:"height"` // requested frame height, 0 keeps the driver default
	FPS    int `yaml:"fps" json:"fps"`

	// Quality is the JPEG quality of frames streamed to the dashboard.
	Quality int `yaml:"quality" json:"quality"`
}

// Preset names
const (
	PresetDefault = "default"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
)

// DefaultConfig opens the first webcam at 640x480, enough for cascade
// detection at 30 FPS.
func DefaultConfig() Config {
	return Config{
		Device:  "0",
		Width:   640,
		Height:  480,
		FPS:     30,
		Quality: 75,
	}
}

// GetPreset returns the named configuration or nil.
func GetPreset(name string) *Config {
	cfg := DefaultConfig()
	switch name {
	case PresetDefault:
	case Preset720p:
		cfg.Width, cfg.Height = 1280, 720
	case Preset1080p:
		cfg.Width, cfg.Height = 1920, 1080
	default:
		return nil
	}
	return &cfg
}

// DeviceIndex returns the camera index when Device is numeric.
func (c Config) DeviceIndex() (int, bool) {
	i, err := strconv.Atoi(c.Device)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Validate returns all problems with c, or nil if valid.
func (c Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device must be a camera index or a video file path")
	}
	if c.Width != 0 && (c.Width < 160 || c.Width > 4096) {
		errors = append(errors, "width must be 0 or between 160 and 4096")
	}
	if c.Height != 0 && (c.Height < 120 || c.Height > 2160) {
		errors = append(errors, "height must be 0 or between 120 and 2160")
	}
	if c.FPS < 0 || c.FPS > 120 {
		errors = append(errors, "fps must be between 0 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}

func (c Config) String() string {
	return fmt.Sprintf("%s %dx%d@%d", c.Device, c.Width, c.Height, c.FPS)
}
