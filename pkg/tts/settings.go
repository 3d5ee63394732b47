package tts

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/blinkwatch/internal/log"
)

// Engine names accepted in Settings.Engines.
const (
	EngineCommand    = providerCommand
	EngineOpenAI     = providerOpenAI
	EngineElevenLabs = providerElevenLabs
)

// Settings is the file/env form of the speech configuration.
type Settings struct {
	// Engines are tried in order.
	Engines []string `yaml:"engines" json:"engines"`

	// Command overrides the offline engine argv.
	Command []string `yaml:"command" json:"command"`

	Voice   string        `yaml:"voice" json:"voice"`
	Model   string        `yaml:"model" json:"model"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	OpenAIKey     string `yaml:"openai_api_key" json:"-"`
	ElevenLabsKey string `yaml:"elevenlabs_api_key" json:"-"`
	ElevenVoice   string `yaml:"elevenlabs_voice" json:"elevenlabs_voice"`
}

// DefaultSettings prefers OpenAI when a key is present and falls back to
// the offline engine.
func DefaultSettings() Settings {
	return Settings{
		Engines:     []string{EngineOpenAI, EngineCommand},
		Voice:       VoiceShimmer,
		Model:       ModelTTS1,
		Timeout:     10 * time.Second,
		ElevenVoice: "rachel",
	}
}

// New builds a Speaker from s. Engines that cannot start (missing key,
// engine not installed) are skipped with a warning. Returns
// ErrProviderUnavailable when none is usable.
func New(s Settings, player Player, logger *slog.Logger) (Speaker, error) {
	logger = log.Or(logger, "tts")

	var speakers []Speaker
	for _, name := range s.Engines {
		sp, err := newEngine(name, s, player, logger)
		if err != nil {
			logger.Warn("speech engine unavailable", "engine", name, "error", err)
			continue
		}
		speakers = append(speakers, sp)
	}

	switch len(speakers) {
	case 0:
		return nil, ErrProviderUnavailable
	case 1:
		return speakers[0], nil
	}
	return NewChainWithLogger(logger, speakers...)
}

func newEngine(name string, s Settings, player Player, logger *slog.Logger) (Speaker, error) {
	switch name {
	case EngineCommand:
		return NewCommand(s.Command, logger)
	case EngineOpenAI:
		return NewOpenAI(
			WithAPIKey(s.OpenAIKey),
			WithVoice(s.Voice),
			WithModel(s.Model),
			WithTimeout(s.Timeout),
			WithPlayer(player),
			WithLogger(logger),
		)
	case EngineElevenLabs:
		return NewElevenLabs(
			WithAPIKey(s.ElevenLabsKey),
			WithVoice(s.ElevenVoice),
			WithTimeout(s.Timeout),
			WithPlayer(player),
			WithLogger(logger),
		)
	}
	return nil, fmt.Errorf("tts: unknown engine %q", name)
}
