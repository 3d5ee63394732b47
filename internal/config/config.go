// Package config loads blinkwatch settings from defaults, a YAML file, a
// .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/teslashibe/blinkwatch/pkg/blink"
	"github.com/teslashibe/blinkwatch/pkg/camera"
	"github.com/teslashibe/blinkwatch/pkg/detection"
	"github.com/teslashibe/blinkwatch/pkg/landmark"
	"github.com/teslashibe/blinkwatch/pkg/notify"
	"github.com/teslashibe/blinkwatch/pkg/overlay"
	"github.com/teslashibe/blinkwatch/pkg/tts"
	"github.com/teslashibe/blinkwatch/pkg/web"
	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	Blink        blink.Config `yaml:"blink" json:"blink"`
	AlertMessage string       `yaml:"alert_message" json:"alert_message"`

	Camera    camera.Config    `yaml:"camera" json:"camera"`
	Detection detection.Config `yaml:"detection" json:"detection"`
	Landmarks landmark.Config  `yaml:"landmarks" json:"landmarks"`

	Speech tts.Settings `yaml:"speech" json:"speech"`
	Player []string     `yaml:"player" json:"player"` // audio player argv, reads stdin

	Web     web.Config `yaml:"web" json:"web"`
	Results Results    `yaml:"results" json:"results"`
	Display Display    `yaml:"display" json:"display"`
}

// Results configures the per-frame CSV log.
type Results struct {
	Path        string `yaml:"path" json:"path"` // empty disables the log
	GroundTruth string `yaml:"ground_truth" json:"ground_truth"`
}

// Display configures the local preview window.
type Display struct {
	Window    bool   `yaml:"window" json:"window"`
	Title     string `yaml:"title" json:"title"`
	Watermark string `yaml:"watermark" json:"watermark"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		Blink:        blink.DefaultConfig(),
		AlertMessage: notify.DefaultMessage,
		Camera:       camera.DefaultConfig(),
		Detection:    detection.DefaultConfig(),
		Landmarks:    landmark.DefaultConfig(),
		Speech:       tts.DefaultSettings(),
		Web:          web.DefaultConfig(),
		Results: Results{
			Path: "blink_detection_results.csv",
		},
		Display: Display{
			Window:    true,
			Title:     "Video",
			Watermark: overlay.DefaultWatermark,
		},
	}
}

// Load builds the configuration. path may be empty. A .env file in the
// working directory is read when present; real environment variables win
// over it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	if v, ok := lookup("BLINK_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("BLINK_THRESHOLD: %w", err))
		} else {
			c.Blink.Threshold = f
		}
	}
	dur("ALERT_DURATION", &c.Blink.AlertDuration)
	dur("COOLDOWN_DURATION", &c.Blink.Cooldown)
	str("ALERT_MESSAGE", &c.AlertMessage)

	str("CAMERA_DEVICE", &c.Camera.Device)
	str("DETECTOR_BACKEND", &c.Detection.Backend)
	str("LANDMARK_URL", &c.Landmarks.URL)

	str("OPENAI_API_KEY", &c.Speech.OpenAIKey)
	str("ELEVENLABS_API_KEY", &c.Speech.ElevenLabsKey)

	str("WEB_PORT", &c.Web.Port)
	str("RESULTS_PATH", &c.Results.Path)
	str("LOG_LEVEL", &c.LogLevel)

	return errors.Join(errs...)
}

// parseDuration accepts Go durations ("5s") and bare seconds ("5", "2.5").
func parseDuration(s string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Blink.Validate(); err != nil {
		errs = append(errs, err)
	}
	for _, e := range c.Camera.Validate() {
		errs = append(errs, fmt.Errorf("camera: %s", e))
	}
	switch c.Detection.Backend {
	case detection.BackendCascade, detection.BackendYuNet, detection.BackendPigo:
	default:
		errs = append(errs, fmt.Errorf("detection: unknown backend %q", c.Detection.Backend))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	if c.Web.Enabled {
		if p, err := strconv.Atoi(c.Web.Port); err != nil || p < 0 || p > 65535 {
			errs = append(errs, fmt.Errorf("web: invalid port %q", c.Web.Port))
		}
	}
	if c.Landmarks.URL != "" && c.Landmarks.Timeout <= 0 {
		errs = append(errs, errors.New("landmarks: timeout must be positive"))
	}

	return errors.Join(errs...)
}
