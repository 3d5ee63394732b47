// Package app wires the blinkwatch components together and runs the frame
// loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/blinkwatch/internal/config"
	"github.com/teslashibe/blinkwatch/internal/log"
	"github.com/teslashibe/blinkwatch/pkg/audio"
	"github.com/teslashibe/blinkwatch/pkg/blink"
	"github.com/teslashibe/blinkwatch/pkg/camera"
	"github.com/teslashibe/blinkwatch/pkg/detection"
	"github.com/teslashibe/blinkwatch/pkg/landmark"
	"github.com/teslashibe/blinkwatch/pkg/metrics"
	"github.com/teslashibe/blinkwatch/pkg/notify"
	"github.com/teslashibe/blinkwatch/pkg/overlay"
	"github.com/teslashibe/blinkwatch/pkg/pipeline"
	"github.com/teslashibe/blinkwatch/pkg/resultlog"
	"github.com/teslashibe/blinkwatch/pkg/tts"
	"github.com/teslashibe/blinkwatch/pkg/web"
	"gocv.io/x/gocv"
)

// App owns every component of a blinkwatch run.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// Vision
	source   *camera.Source
	faces    detection.Detector
	eyes     detection.EyeLocator
	analyzer *pipeline.Analyzer
	renderer *overlay.Renderer
	window   *gocv.Window

	// Alerts
	player   *audio.Player
	speaker  tts.Speaker
	notifier *notify.Notifier

	// Outputs
	results *resultlog.Writer
	metrics *metrics.Metrics
	web     *web.Server

	// Frame loop state, owned by the Run goroutine.
	session web.Session
	tracker *blink.Tracker
	frame   int
	alerts  uint64
	fps     fpsMeter
}

// New creates an application. Components are built by Init.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{
		cfg:     cfg,
		logger:  log.Or(logger, "app"),
		metrics: metrics.New(),
	}, nil
}

// Init opens the camera and builds detectors, speech and outputs.
// Call Shutdown even when Init fails.
func (a *App) Init() error {
	cfg := a.cfg

	if err := a.initVision(); err != nil {
		return err
	}
	a.initSpeech()

	if cfg.Results.Path != "" {
		var truth map[int]bool
		if cfg.Results.GroundTruth != "" {
			t, err := resultlog.LoadGroundTruth(cfg.Results.GroundTruth)
			if err != nil {
				return fmt.Errorf("ground truth: %w", err)
			}
			truth = t
		}
		w, err := resultlog.Create(cfg.Results.Path, truth)
		if err != nil {
			return fmt.Errorf("results log: %w", err)
		}
		a.results = w
		a.logger.Info("writing results", "path", cfg.Results.Path, "ground_truth", truth != nil)
	}

	a.startSession(web.Session{
		ID:           uuid.NewString(),
		Config:       cfg.Blink,
		AlertMessage: cfg.AlertMessage,
		Started:      time.Now(),
	})

	if cfg.Web.Enabled {
		a.web = web.NewServer(cfg.Web, a.session,
			web.WithMetrics(a.metrics.Handler()),
			web.WithConfigView(cfg),
			web.WithLogger(a.logger),
		)
		a.web.UpdateState(func(s *web.Status) { s.SpeakerEngine = a.speaker.Name() })
	}

	if cfg.Display.Window {
		a.window = gocv.NewWindow(cfg.Display.Title)
	}
	return nil
}

func (a *App) initVision() error {
	cfg := a.cfg

	src, err := camera.Open(cfg.Camera, a.logger)
	if err != nil {
		return err
	}
	a.source = src

	faces, eyes, err := detection.New(cfg.Detection)
	if err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	a.faces, a.eyes = faces, eyes

	opts := []pipeline.Option{pipeline.WithLogger(a.logger)}
	if cfg.Landmarks.URL != "" {
		remote, err := landmark.NewRemote(cfg.Landmarks, a.logger)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithLandmarks(remote, cfg.Landmarks.Timeout))
	} else {
		a.logger.Warn("no landmark service configured, blinks cannot be counted")
	}
	a.analyzer = pipeline.NewAnalyzer(faces, eyes, opts...)

	style := overlay.DefaultStyle()
	style.Watermark = cfg.Display.Watermark
	a.renderer = overlay.NewRenderer(style)
	return nil
}

// initSpeech falls back to logging alerts when no engine is usable.
func (a *App) initSpeech() {
	a.player = audio.NewPlayer(a.cfg.Player, a.logger)

	sp, err := tts.New(a.cfg.Speech, a.player, a.logger)
	if err != nil {
		a.logger.Warn("no speech engine available, alerts are logged only", "error", err)
		sp = logSpeaker{logger: a.logger}
	}
	a.speaker = sp
	a.notifier = notify.New(sp, a.cfg.AlertMessage, a.logger)
	a.logger.Info("speech ready", "speaker", sp.Name())
}

// startSession replaces the tracker. Blink counts and alert state start
// from zero.
func (a *App) startSession(s web.Session) {
	a.session = s
	a.tracker = blink.NewTracker(s.Config, s.Started)
	a.notifier.SetMessage(s.AlertMessage)
	a.metrics.SessionStarted()

	if a.web != nil {
		a.web.SetSession(s)
		a.web.AddLog("session", fmt.Sprintf("session %s started", s.ID))
	}
	a.logger.Info("session started",
		"session", s.ID,
		"threshold", s.Config.Threshold,
		"alert_after", s.Config.AlertDuration,
		"cooldown", s.Config.Cooldown,
	)
}

// Run processes frames until ctx is done, the source ends or the user
// quits from the window.
func (a *App) Run(ctx context.Context) error {
	go a.notifier.Run(ctx)
	if a.web != nil {
		go func() {
			if err := a.web.Run(ctx); err != nil {
				a.logger.Error("dashboard stopped", "error", err)
			}
		}()
		a.web.AddLog("info", "blinkwatch started")
	}

	img := gocv.NewMat()
	defer img.Close()

	var sessions <-chan web.Session
	if a.web != nil {
		sessions = a.web.Sessions()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-sessions:
			a.startSession(s)
		default:
		}

		if err := a.source.Read(&img); err != nil {
			if errors.Is(err, camera.ErrEndOfStream) {
				a.logger.Info("video source finished", "frames", a.frame)
				return nil
			}
			return err
		}

		now := time.Now()
		res, err := a.analyzer.Analyze(ctx, img, now)
		if err != nil && ctx.Err() == nil {
			a.logger.Debug("frame analysis degraded", "frame", a.frame+1, "error", err)
		}

		out := a.step(res, now)
		a.render(&img, res, out)

		if a.window != nil {
			a.window.IMShow(img)
			if key := a.window.WaitKey(1); key == 'q' || key == 27 {
				a.logger.Info("quit requested")
				return nil
			}
		}
	}
}

// Shutdown releases everything Init acquired.
func (a *App) Shutdown() {
	if a.window != nil {
		a.window.Close()
	}
	if a.source != nil {
		a.source.Close()
	}
	if a.faces != nil {
		a.faces.Close()
	}
	if a.eyes != nil {
		a.eyes.Close()
	}
	if a.speaker != nil {
		a.speaker.Close()
	}
	if a.results != nil {
		if err := a.results.Close(); err != nil {
			a.logger.Warn("closing results log", "error", err)
		}
	}

	if a.notifier == nil || a.tracker == nil {
		return
	}
	stats := a.notifier.Stats()
	a.logger.Info("shutdown",
		"frames", a.frame,
		"blinks", a.tracker.State().TotalBlinks,
		"alerts", a.alerts,
		"alerts_spoken", stats.Delivered,
		"alerts_dropped", stats.Dropped,
	)
}

// logSpeaker stands in when no speech engine can be built.
type logSpeaker struct {
	logger *slog.Logger
}

func (l logSpeaker) Speak(_ context.Context, text string) error {
	l.logger.Warn("ALERT", "message", text)
	return nil
}

func (logSpeaker) Name() string { return "log" }
func (logSpeaker) Close() error { return nil }
