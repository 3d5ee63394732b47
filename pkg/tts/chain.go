package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teslashibe/blinkwatch/internal/log"
)

// Chain implements Speaker by trying engines in order.
// The first engine that speaks wins; if all fail, returns a ChainError.
type Chain struct {
	speakers []Speaker
	logger   *slog.Logger
}

// NewChain creates a chain. At least one speaker is required.
func NewChain(speakers ...Speaker) (*Chain, error) {
	if len(speakers) == 0 {
		return nil, ErrProviderUnavailable
	}
	return &Chain{
		speakers: speakers,
		logger:   log.Component("tts.chain"),
	}, nil
}

// NewChainWithLogger creates a chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, speakers ...Speaker) (*Chain, error) {
	chain, err := NewChain(speakers...)
	if err != nil {
		return nil, err
	}
	chain.logger = log.Or(logger, "tts.chain")
	return chain, nil
}

// Speak tries each engine until one succeeds.
func (c *Chain) Speak(ctx context.Context, text string) error {
	var errs []error

	for i, s := range c.speakers {
		err := s.Speak(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback speaker succeeded", "speaker", s.Name(), "chars", len(text))
			}
			return nil
		}

		errs = append(errs, err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("speaker failed, trying next", "speaker", s.Name(), "error", err)
	}

	return &ChainError{Errors: errs}
}

// Name implements Speaker.
func (c *Chain) Name() string {
	names := make([]string, len(c.speakers))
	for i, s := range c.speakers {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Close closes all engines and returns the last error.
func (c *Chain) Close() error {
	var lastErr error
	for _, s := range c.speakers {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Speakers returns the engines in order.
func (c *Chain) Speakers() []Speaker {
	return c.speakers
}

// ChainError aggregates errors from every engine in a chain.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no errors recorded"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("tts chain: all %d speakers failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap exposes every engine error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}

var _ Speaker = (*Chain)(nil)
