package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/teslashibe/blinkwatch/internal/httpc"
	"github.com/teslashibe/blinkwatch/internal/log"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"

	// ModelTurboV2_5 is the low-latency English model.
	ModelTurboV2_5 = "eleven_turbo_v2_5"
)

// elevenLabsVoices maps preset names to voice IDs.
var elevenLabsVoices = map[string]string{
	"rachel": "21m00Tcm4TlvDq8ikWAM",
	"adam":   "pNInz6obpgDQGcFmaJgB",
	"sarah":  "EXAVITQu4vr4xnSDxMaL",
}

// ResolveElevenLabsVoice returns the voice ID for a preset name, or name
// unchanged when it is already an ID.
func ResolveElevenLabsVoice(name string) string {
	if id, ok := elevenLabsVoices[name]; ok {
		return id
	}
	return name
}

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// ElevenLabs speaks through the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	config *Config
	client *resty.Client
	logger *slog.Logger
}

// NewElevenLabs creates an ElevenLabs engine. WithAPIKey and WithVoice are
// required.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg, err := resolve(elevenLabsBaseURL, "", ModelTurboV2_5, opts)
	if err != nil {
		return nil, err
	}
	cfg.Voice = ResolveElevenLabsVoice(cfg.Voice)

	client := httpc.New(cfg.Endpoint, cfg.Timeout).
		SetHeader("xi-api-key", cfg.Key).
		SetHeader("Accept", "audio/mpeg")
	if cfg.Retries > 0 {
		httpc.WithRetry(client, cfg.Retries, cfg.RetryWait)
	}

	return &ElevenLabs{
		config: cfg,
		client: client,
		logger: log.Or(cfg.Logger, "tts.elevenlabs"),
	}, nil
}

// Synthesize returns MP3 audio for text.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	resp, err := e.client.R().
		SetContext(ctx).
		SetPathParam("voice", e.config.Voice).
		SetQueryParam("output_format", "mp3_44100_128").
		SetBody(elevenLabsRequest{
			Text:          text,
			ModelID:       e.config.Model,
			VoiceSettings: e.config.Tuning,
		}).
		Post("/text-to-speech/{voice}")
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("request: %w", err))
	}
	if resp.IsError() {
		return nil, parseElevenLabsError(resp)
	}

	latency := since(start)
	e.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(resp.Body()),
		"latency_ms", latency,
		"model", e.config.Model,
	)

	return &AudioResult{
		Audio:     resp.Body(),
		Encoding:  EncodingMP3,
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// parseElevenLabsError handles both {"detail": {"status", "message"}} and
// {"detail": "text"} bodies.
func parseElevenLabsError(resp *resty.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode(),
		Message:    resp.String(),
		Provider:   providerElevenLabs,
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(resp.Body(), &body) != nil || len(body.Detail) == 0 {
		return apiErr
	}

	var detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	var text string
	switch {
	case json.Unmarshal(body.Detail, &detail) == nil && detail.Message != "":
		apiErr.Message = detail.Message
		apiErr.Code = detail.Status
	case json.Unmarshal(body.Detail, &text) == nil && text != "":
		apiErr.Message = text
	}
	return apiErr
}

// Speak implements Speaker.
func (e *ElevenLabs) Speak(ctx context.Context, text string) error {
	return speak(ctx, providerElevenLabs, e, e.config.Player, text)
}

// Name implements Speaker.
func (e *ElevenLabs) Name() string {
	return providerElevenLabs
}

// Close implements Speaker.
func (e *ElevenLabs) Close() error {
	e.client.GetClient().CloseIdleConnections()
	return nil
}

var (
	_ Speaker     = (*ElevenLabs)(nil)
	_ Synthesizer = (*ElevenLabs)(nil)
)
