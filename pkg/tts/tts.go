// Package tts speaks alert messages aloud.
//
// Every engine implements Speaker. Command runs an offline engine such as
// espeak or say; OpenAI and ElevenLabs synthesize over HTTP and hand the
// audio to a Player. Chain tries engines in order so a missing network or
// key falls back to the local engine.
//
//	espeak, _ := tts.NewCommand(nil, logger)
//	speaker, _ := tts.NewChain(openai, espeak)
//	speaker.Speak(ctx, "Wake up!")
package tts

import (
	"context"
	"time"
)

// Speaker turns text into audible speech. Speak returns when the speech
// has finished or ctx is done.
type Speaker interface {
	Speak(ctx context.Context, text string) error

	// Name identifies the engine in logs and errors.
	Name() string

	// Close releases any resources held by the engine.
	Close() error
}

// Synthesizer produces encoded audio for text without playing it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*AudioResult, error)
}

// Player plays an encoded audio buffer. *audio.Player implements it.
type Player interface {
	Play(ctx context.Context, data []byte) error
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	Audio     []byte
	Encoding  Encoding
	CharCount int

	// LatencyMs is the time the service took to answer.
	LatencyMs int64
}

// Encoding names the container/codec of synthesized audio.
type Encoding string

const (
	EncodingMP3 Encoding = "mp3"
	EncodingWAV Encoding = "wav"
)

// VoiceSettings controls voice characteristics for providers that support it.
type VoiceSettings struct {
	// Stability controls voice consistency (0.0-1.0).
	Stability float64 `yaml:"stability" json:"stability"`

	// SimilarityBoost controls how closely the voice matches the original (0.0-1.0).
	SimilarityBoost float64 `yaml:"similarity_boost" json:"similarity_boost"`
}

// DefaultVoiceSettings returns settings suited to short, clear alerts.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.7,
		SimilarityBoost: 0.75,
	}
}

// speak synthesizes text and plays the result.
func speak(ctx context.Context, provider string, s Synthesizer, p Player, text string) error {
	if text == "" {
		return WrapError(provider, ErrEmptyText)
	}
	if p == nil {
		return WrapError(provider, ErrNoPlayer)
	}

	res, err := s.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if err := p.Play(ctx, res.Audio); err != nil {
		return WrapError(provider, err)
	}
	return nil
}

func since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
