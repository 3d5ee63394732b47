package tts

import (
	"log/slog"
	"time"
)

// Config holds the settings shared by the HTTP engines. Engines fill
// Endpoint, Voice and Model with their own defaults when left empty.
type Config struct {
	Key      string
	Endpoint string

	Voice  string
	Model  string
	Tuning VoiceSettings // ElevenLabs only

	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration

	Player Player
	Logger *slog.Logger
}

// Option sets one Config field.
type Option func(*Config)

func WithAPIKey(key string) Option { return func(c *Config) { c.Key = key } }
func WithBaseURL(url string) Option { return func(c *Config) { c.Endpoint = url } }
func WithVoice(voice string) Option { return func(c *Config) { c.Voice = voice } }
func WithModel(model string) Option { return func(c *Config) { c.Model = model } }
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }
func WithPlayer(p Player) Option { return func(c *Config) { c.Player = p } }
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }
func WithVoiceSettings(s VoiceSettings) Option { return func(c *Config) { c.Tuning = s } }

// WithRetry retries failed requests n times, waiting wait between tries.
func WithRetry(n int, wait time.Duration) Option {
	return func(c *Config) {
		c.Retries = n
		c.RetryWait = wait
	}
}

// DefaultConfig returns the engine-independent defaults.
func DefaultConfig() *Config {
	return &Config{
		Tuning:    DefaultVoiceSettings(),
		Timeout:   10 * time.Second,
		Retries:   2,
		RetryWait: 200 * time.Millisecond,
	}
}

// Apply runs opts in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate reports the first missing credential.
func (c *Config) Validate() error {
	switch {
	case c.Key == "":
		return ErrNoAPIKey
	case c.Voice == "":
		return ErrNoVoiceID
	}
	return nil
}

// resolve builds an engine config: defaults, then opts, then the engine's
// fallbacks for anything still empty.
func resolve(endpoint, voice, model string, opts []Option) (*Config, error) {
	c := DefaultConfig()
	c.Apply(opts...)
	if c.Endpoint == "" {
		c.Endpoint = endpoint
	}
	if c.Voice == "" {
		c.Voice = voice
	}
	if c.Model == "" {
		c.Model = model
	}
	return c, c.Validate()
}
