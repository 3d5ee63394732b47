// Package pipeline turns camera frames into the per-frame signal the blink
// tracker consumes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/teslashibe/blinkwatch/internal/log"
	"github.com/teslashibe/blinkwatch/pkg/blink"
	"github.com/teslashibe/blinkwatch/pkg/detection"
	"github.com/teslashibe/blinkwatch/pkg/landmark"
	"gocv.io/x/gocv"
)

// Result is the analysis of one frame.
type Result struct {
	// Signal is what the tracker sees.
	Signal blink.Frame

	// Faces are all detected faces; Face is the one analysed further.
	Faces []detection.Detection
	Face  *detection.Detection

	// Eyes are eye boxes in frame pixels.
	Eyes []image.Rectangle
}

// Analyzer runs face detection, eye localisation and, when a landmark
// provider is set, eye aspect ratio measurement.
type Analyzer struct {
	faces     detection.Detector
	eyes      detection.EyeLocator
	landmarks landmark.Provider // optional

	landmarkTimeout time.Duration
	logger          *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLandmarks enables EAR measurement through p.
func WithLandmarks(p landmark.Provider, timeout time.Duration) Option {
	return func(a *Analyzer) {
		a.landmarks = p
		a.landmarkTimeout = timeout
	}
}

// WithLogger sets the analyzer's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// NewAnalyzer creates an analyzer. faces and eyes are required.
func NewAnalyzer(faces detection.Detector, eyes detection.EyeLocator, opts ...Option) *Analyzer {
	a := &Analyzer{faces: faces, eyes: eyes}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = log.Or(a.logger, "pipeline")
	return a
}

// Analyze examines one frame taken at now.
//
// Failures degrade the signal rather than abort it: a detector error
// yields a frame without a face, a landmark error yields visible eyes
// without an EAR. The error is still returned so the caller can log it.
// The returned Signal is always valid input for blink.Tracker.Observe.
func (a *Analyzer) Analyze(ctx context.Context, img gocv.Mat, now time.Time) (Result, error) {
	res := Result{Signal: blink.Frame{Now: now}}

	faces, err := a.faces.Detect(img)
	if err != nil {
		return res, fmt.Errorf("detect faces: %w", err)
	}
	res.Faces = faces

	best := detection.SelectBest(faces)
	if best == nil {
		return res, nil
	}
	res.Face = best
	res.Signal.FacePresent = true

	eyes, err := a.eyes.LocateEyes(img, *best)
	if err != nil {
		return res, fmt.Errorf("locate eyes: %w", err)
	}
	res.Eyes = eyes
	if len(eyes) == 0 {
		return res, nil
	}
	res.Signal.EyesVisible = true

	if a.landmarks == nil {
		return res, nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return res, fmt.Errorf("encode frame: %w", err)
	}
	jpeg := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	lctx := ctx
	if a.landmarkTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, a.landmarkTimeout)
		defer cancel()
	}

	face, err := a.landmarks.Landmarks(lctx, jpeg, *best)
	if err != nil {
		if errors.Is(err, landmark.ErrNoFace) {
			a.logger.Debug("landmark service found no face")
			return res, nil
		}
		return res, fmt.Errorf("landmarks: %w", err)
	}

	res.Signal.EAR = face.Ratio()
	res.Signal.HasEAR = true
	return res, nil
}
