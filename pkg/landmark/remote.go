package landmark

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/teslashibe/blinkwatch/internal/httpc"
	"github.com/teslashibe/blinkwatch/internal/log"
	"github.com/teslashibe/blinkwatch/pkg/detection"
	"github.com/teslashibe/blinkwatch/pkg/ear"
)

// Config configures the remote landmark client.
type Config struct {
	URL        string        `yaml:"url" json:"url"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
}

// DefaultConfig returns client defaults. An empty URL disables landmarks.
func DefaultConfig() Config {
	return Config{
		Timeout:    500 * time.Millisecond,
		MaxRetries: 0, // a late answer is useless for the current frame
	}
}

type box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type request struct {
	Image string `json:"image"` // base64 JPEG
	Box   box    `json:"box"`   // normalized 0-1
}

type response struct {
	Points []ear.Point `json:"points"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Remote calls a shape-predictor service over HTTP.
//
// POST {URL}/landmarks with {"image": <base64 jpeg>, "box": {x,y,w,h}}
// answers {"points": [{"x":..,"y":..} x68]} or 404 when no face is found.
type Remote struct {
	client *resty.Client
	logger *slog.Logger
}

// NewRemote creates a client for the service at cfg.URL.
func NewRemote(cfg Config, logger *slog.Logger) (*Remote, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("landmark: service URL required")
	}
	c := httpc.New(cfg.URL, cfg.Timeout)
	if cfg.MaxRetries > 0 {
		httpc.WithRetry(c, cfg.MaxRetries, 20*time.Millisecond)
	}
	return &Remote{
		client: c,
		logger: log.Or(logger, "landmark.remote"),
	}, nil
}

// Landmarks implements Provider.
func (r *Remote) Landmarks(ctx context.Context, jpeg []byte, face detection.Detection) (ear.Face, error) {
	var (
		out     response
		errBody errorBody
	)

	start := time.Now()
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(request{
			Image: base64.StdEncoding.EncodeToString(jpeg),
			Box:   box{X: face.X, Y: face.Y, W: face.W, H: face.H},
		}).
		SetResult(&out).
		SetError(&errBody).
		Post("/landmarks")
	if err != nil {
		return ear.Face{}, fmt.Errorf("landmark: request: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return ear.Face{}, ErrNoFace
	case resp.IsError():
		msg := errBody.Error
		if msg == "" {
			msg = resp.Status()
		}
		return ear.Face{}, &ServiceError{StatusCode: resp.StatusCode(), Message: msg}
	}

	f, ok := ear.FromPoints(out.Points)
	if !ok {
		return ear.Face{}, fmt.Errorf("landmark: expected %d points, got %d", ear.NumLandmarks, len(out.Points))
	}

	r.logger.Debug("landmarks received", "latency_ms", time.Since(start).Milliseconds())
	return f, nil
}
