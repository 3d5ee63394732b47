package tts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/teslashibe/blinkwatch/internal/httpc"
	"github.com/teslashibe/blinkwatch/internal/log"
)

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	providerOpenAI = "openai"
)

// OpenAI voice options
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceNova    = "nova"
	VoiceOnyx    = "onyx"
	VoiceShimmer = "shimmer"
)

// OpenAI model options
const (
	ModelTTS1   = "tts-1"    // faster
	ModelTTS1HD = "tts-1-hd" // higher quality
)

type openAIRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// OpenAI speaks through the OpenAI speech endpoint.
type OpenAI struct {
	config *Config
	client *resty.Client
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI engine. WithAPIKey is required; WithPlayer is
// required for Speak but not for Synthesize.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg, err := resolve(openAIBaseURL, VoiceShimmer, ModelTTS1, opts)
	if err != nil {
		return nil, err
	}

	client := httpc.New(cfg.Endpoint, cfg.Timeout).SetAuthToken(cfg.Key)
	if cfg.Retries > 0 {
		httpc.WithRetry(client, cfg.Retries, cfg.RetryWait)
	}

	return &OpenAI{
		config: cfg,
		client: client,
		logger: log.Or(cfg.Logger, "tts.openai"),
	}, nil
}

// Synthesize returns MP3 audio for text.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	start := time.Now()

	var apiErr openAIError
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(openAIRequest{
			Model:          o.config.Model,
			Voice:          o.config.Voice,
			Input:          text,
			ResponseFormat: string(EncodingMP3),
		}).
		SetError(&apiErr).
		Post("/audio/speech")
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("request: %w", err))
	}

	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.String()
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Message:    msg,
			Code:       apiErr.Error.Code,
			Provider:   providerOpenAI,
		}
	}

	latency := since(start)
	o.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(resp.Body()),
		"latency_ms", latency,
		"voice", o.config.Voice,
	)

	return &AudioResult{
		Audio:     resp.Body(),
		Encoding:  EncodingMP3,
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Speak implements Speaker.
func (o *OpenAI) Speak(ctx context.Context, text string) error {
	return speak(ctx, providerOpenAI, o, o.config.Player, text)
}

// Name implements Speaker.
func (o *OpenAI) Name() string {
	return providerOpenAI
}

// Close implements Speaker.
func (o *OpenAI) Close() error {
	o.client.GetClient().CloseIdleConnections()
	return nil
}

// VoiceID returns the configured voice.
func (o *OpenAI) VoiceID() string {
	return o.config.Voice
}

var (
	_ Speaker     = (*OpenAI)(nil)
	_ Synthesizer = (*OpenAI)(nil)
)
