package blink

import (
	"fmt"
	"time"
)

// Config holds the per-session tracker parameters.
// A session never changes its Config; start a new session instead.
type Config struct {
	// Threshold is the eye aspect ratio below which the eyes count as closed.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// AlertDuration is how long the eyes must stay out of sight before the first alert.
	AlertDuration time.Duration `json:"alert_duration" yaml:"alert_duration"`

	// Cooldown is the minimum spacing between repeated alerts.
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown"`
}

// DefaultThreshold is the EAR below which a frame counts as closed-eye.
const DefaultThreshold = 0.20

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:     DefaultThreshold,
		AlertDuration: 5 * time.Second,
		Cooldown:      3 * time.Second,
	}
}

// Validate checks that the parameters describe a usable session.
func (c Config) Validate() error {
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("blink: threshold must be in (0, 1), got %.3f", c.Threshold)
	}
	if c.AlertDuration < 0 {
		return fmt.Errorf("blink: alert duration must not be negative, got %s", c.AlertDuration)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("blink: cooldown must be positive, got %s", c.Cooldown)
	}
	return nil
}
