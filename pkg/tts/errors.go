package tts

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAPIKey is returned when an HTTP engine has no API key.
	ErrNoAPIKey = errors.New("tts: API key required")

	// ErrNoVoiceID is returned when an engine needs a voice and has none.
	ErrNoVoiceID = errors.New("tts: voice ID required")

	// ErrNoPlayer is returned when synthesized audio has nowhere to play.
	ErrNoPlayer = errors.New("tts: audio player required")

	// ErrEmptyText is returned for Speak("").
	ErrEmptyText = errors.New("tts: empty text")

	// ErrProviderUnavailable is returned when no engine can be used.
	ErrProviderUnavailable = errors.New("tts: no providers available")
)

// APIError is an error response from a speech API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tts [%s]: API error %d (%s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tts [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsUnauthorized reports an authentication failure (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsRetryable reports rate limiting or a server-side failure.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// ProviderError wraps an error with the engine that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts [%s]: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps err with provider context. WrapError(p, nil) is nil.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
