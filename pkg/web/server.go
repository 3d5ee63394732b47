// Package web serves the live tracking dashboard.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/blinkwatch/internal/log"
	"github.com/teslashibe/blinkwatch/pkg/blink"
	"github.com/teslashibe/blinkwatch/pkg/hub"
)

const maxLogs = 500

// Config configures the dashboard.
type Config struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Port      string `yaml:"port" json:"port"`
	StaticDir string `yaml:"static_dir" json:"static_dir"` // optional dashboard assets
}

// DefaultConfig serves on :8181 without static assets.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Port:    "8181",
	}
}

// Status is the dashboard's view of the current session.
type Status struct {
	SessionID      string    `json:"session_id"`
	SessionStarted time.Time `json:"session_started"`

	Phase       blink.Phase `json:"phase"`
	FacePresent bool        `json:"face_present"`
	EyesVisible bool        `json:"eyes_visible"`
	EAR         float64     `json:"ear"`
	HasEAR      bool        `json:"has_ear"`

	Blinks        uint    `json:"blinks"`
	EyesMissingS  float64 `json:"eyes_missing_s"`
	Alerting      bool    `json:"alerting"`
	Alerts        uint64  `json:"alerts"`
	Frames        uint64  `json:"frames"`
	FPS           float64 `json:"fps"`
	SpeakerEngine string  `json:"speaker_engine,omitempty"`
}

// LogEntry is one dashboard log line.
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, blink, alert, session, error
	Message string `json:"message"`
}

// Session is a tracking session request or the session in effect.
type Session struct {
	ID           string       `json:"id"`
	Config       blink.Config `json:"config"`
	AlertMessage string       `json:"alert_message"`
	Started      time.Time    `json:"started"`
}

// Server is the dashboard server.
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	state   Status
	stateMu sync.RWMutex

	logs   []LogEntry
	logsMu sync.RWMutex

	session   Session
	sessionMu sync.RWMutex
	sessions  chan Session

	configView any

	statusHub *hub.Hub
	logHub    *hub.Hub
	cameraHub *hub.Hub

	now func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.app.Get("/metrics", adaptor.HTTPHandler(h))
	}
}

// WithConfigView sets what /api/config returns. Secrets must already be
// stripped.
func WithConfigView(v any) Option {
	return func(s *Server) {
		s.configView = v
	}
}

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = log.Or(l, "web")
	}
}

// NewServer creates a dashboard server. initial is the session in effect
// at launch.
func NewServer(cfg Config, initial Session, opts ...Option) *Server {
	logger := log.Component("web")
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		logs:      make([]LogEntry, 0, maxLogs),
		session:   initial,
		sessions:  make(chan Session, 1),
		statusHub: hub.New("status", logger),
		logHub:    hub.New("logs", logger),
		cameraHub: hub.New("camera", logger),
		now:       time.Now,
	}
	s.state.SessionID = initial.ID
	s.state.SessionStarted = initial.Started

	app := fiber.New(fiber.Config{
		AppName:               "blinkwatch",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/logs", s.handleGetLogs)
	api.Get("/config", s.handleGetConfig)
	api.Get("/session", s.handleGetSession)
	api.Post("/session", s.handleNewSession)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	for _, opt := range opts {
		opt(s)
	}

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}
	return s
}

// Run starts the hubs and serves on cfg.Port until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.cfg.Port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.startHubs(ctx)

	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("dashboard shutdown", "error", err)
		}
	}()

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

func (s *Server) startHubs(ctx context.Context) {
	go s.statusHub.Run(ctx)
	go s.logHub.Run(ctx)
	go s.cameraHub.Run(ctx)
}

// Sessions delivers session requests made through the API. The frame loop
// applies them between frames and then calls SetSession.
func (s *Server) Sessions() <-chan Session {
	return s.sessions
}

// SetSession records the session now in effect.
func (s *Server) SetSession(sess Session) {
	s.sessionMu.Lock()
	s.session = sess
	s.sessionMu.Unlock()

	s.UpdateState(func(st *Status) {
		*st = Status{
			SessionID:      sess.ID,
			SessionStarted: sess.Started,
			SpeakerEngine:  st.SpeakerEngine,
			FPS:            st.FPS,
		}
	})
}

// CurrentSession returns the session in effect.
func (s *Server) CurrentSession() Session {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	return s.session
}

// UpdateState changes the status and broadcasts it.
func (s *Server) UpdateState(update func(*Status)) {
	s.stateMu.Lock()
	update(&s.state)
	state := s.state
	s.stateMu.Unlock()

	s.statusHub.BroadcastJSON(state)
}

// State returns a copy of the current status.
func (s *Server) State() Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// AddLog appends a log line and broadcasts it.
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    s.now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogs {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// SendCameraFrame broadcasts an annotated JPEG frame.
func (s *Server) SendCameraFrame(jpeg []byte) {
	if s.cameraHub.ClientCount() == 0 {
		return
	}
	s.cameraHub.BroadcastBinary(jpeg)
}

// CameraViewers reports how many clients watch the camera feed, so the
// caller can skip encoding when nobody does.
func (s *Server) CameraViewers() int {
	return s.cameraHub.ClientCount()
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
