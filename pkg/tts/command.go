package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/teslashibe/blinkwatch/internal/log"
)

const providerCommand = "command"

// DefaultEngineCommand returns the platform's usual offline speech engine.
func DefaultEngineCommand() []string {
	if runtime.GOOS == "darwin" {
		return []string{"say"}
	}
	return []string{"espeak"}
}

// Command speaks by running a local engine with the text as its last
// argument, e.g. `espeak "Wake up!"`.
type Command struct {
	argv   []string
	logger *slog.Logger
}

// NewCommand creates an engine for argv. An empty argv selects
// DefaultEngineCommand. The executable must be on PATH.
func NewCommand(argv []string, logger *slog.Logger) (*Command, error) {
	if len(argv) == 0 {
		argv = DefaultEngineCommand()
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, WrapError(providerCommand, fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
	}
	return &Command{
		argv:   append([]string(nil), argv...),
		logger: log.Or(logger, "tts.command"),
	}, nil
}

// Speak implements Speaker.
func (c *Command) Speak(ctx context.Context, text string) error {
	if text == "" {
		return WrapError(providerCommand, ErrEmptyText)
	}

	args := append(append([]string(nil), c.argv[1:]...), text)
	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return WrapError(providerCommand, fmt.Errorf("%s: %w (%s)", c.argv[0], err, bytes.TrimSpace(stderr.Bytes())))
	}

	c.logger.Debug("spoke", "engine", c.argv[0], "chars", len(text))
	return nil
}

// Name implements Speaker.
func (c *Command) Name() string {
	return providerCommand
}

// Close implements Speaker.
func (c *Command) Close() error {
	return nil
}

var _ Speaker = (*Command)(nil)
