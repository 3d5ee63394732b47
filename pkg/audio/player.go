// Package audio plays synthesized speech on the local machine.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/teslashibe/blinkwatch/internal/log"
)

// ErrNoCommand is returned when the player has no command configured.
var ErrNoCommand = errors.New("audio: player command required")

// DefaultCommand reads an encoded buffer (mp3, wav, ...) from stdin and
// plays it without opening a window.
var DefaultCommand = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"}

// Player pipes audio buffers to an external player process.
// Only one buffer plays at a time; concurrent calls wait their turn.
type Player struct {
	command []string
	logger  *slog.Logger

	// Callbacks
	OnPlaybackStart func()
	OnPlaybackEnd   func()

	mu       sync.Mutex // serializes playback
	stateMu  sync.Mutex
	playing  bool
	lastPlay time.Duration
}

// NewPlayer creates a player. An empty command selects DefaultCommand.
func NewPlayer(command []string, logger *slog.Logger) *Player {
	if len(command) == 0 {
		command = DefaultCommand
	}
	return &Player{
		command: append([]string(nil), command...),
		logger:  log.Or(logger, "audio"),
	}
}

// Play writes data to the player's stdin and waits for playback to finish.
// Cancelling ctx kills the player process.
func (p *Player) Play(ctx context.Context, data []byte) error {
	if len(p.command) == 0 {
		return ErrNoCommand
	}
	if len(data) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cmd := exec.CommandContext(ctx, p.command[0], p.command[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p.setPlaying(true)
	if p.OnPlaybackStart != nil {
		p.OnPlaybackStart()
	}
	defer func() {
		p.setPlaying(false)
		if p.OnPlaybackEnd != nil {
			p.OnPlaybackEnd()
		}
	}()

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	p.stateMu.Lock()
	p.lastPlay = elapsed
	p.stateMu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("audio: %s: %w (%s)", p.command[0], err, bytes.TrimSpace(stderr.Bytes()))
	}

	p.logger.Debug("playback finished", "bytes", len(data), "duration_ms", elapsed.Milliseconds())
	return nil
}

// IsPlaying reports whether a buffer is currently playing.
func (p *Player) IsPlaying() bool {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.playing
}

// LastDuration returns how long the most recent playback took.
func (p *Player) LastDuration() time.Duration {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.lastPlay
}

func (p *Player) setPlaying(v bool) {
	p.stateMu.Lock()
	p.playing = v
	p.stateMu.Unlock()
}
