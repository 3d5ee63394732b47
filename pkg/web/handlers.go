package web

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/blinkwatch/pkg/hub"
)

// SessionRequest starts a new session. Omitted fields keep the current
// session's values. Durations use Go syntax ("5s", "1m30s").
type SessionRequest struct {
	Threshold     *float64 `json:"threshold"`
	AlertDuration string   `json:"alert_duration"`
	Cooldown      string   `json:"cooldown"`
	AlertMessage  *string  `json:"alert_message"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.State())
}

func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	if s.configView == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(s.configView)
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	return c.JSON(s.CurrentSession())
}

// handleNewSession validates the request and hands the new session to the
// frame loop. Only one request may be pending at a time.
func (s *Server) handleNewSession(c *fiber.Ctx) error {
	var req SessionRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON: " + err.Error()})
		}
	}

	sess, err := s.buildSession(req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	select {
	case s.sessions <- sess:
	default:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "a session change is already pending"})
	}

	s.AddLog("session", fmt.Sprintf("session %s requested (threshold %.2f, alert %s, cooldown %s)",
		sess.ID, sess.Config.Threshold, sess.Config.AlertDuration, sess.Config.Cooldown))

	return c.Status(fiber.StatusAccepted).JSON(sess)
}

func (s *Server) buildSession(req SessionRequest) (Session, error) {
	cur := s.CurrentSession()
	cfg := cur.Config
	msg := cur.AlertMessage

	if req.Threshold != nil {
		cfg.Threshold = *req.Threshold
	}
	if req.AlertDuration != "" {
		d, err := time.ParseDuration(req.AlertDuration)
		if err != nil {
			return Session{}, fmt.Errorf("alert_duration: %w", err)
		}
		cfg.AlertDuration = d
	}
	if req.Cooldown != "" {
		d, err := time.ParseDuration(req.Cooldown)
		if err != nil {
			return Session{}, fmt.Errorf("cooldown: %w", err)
		}
		cfg.Cooldown = d
	}
	if req.AlertMessage != nil {
		msg = *req.AlertMessage
	}

	if err := cfg.Validate(); err != nil {
		return Session{}, err
	}

	return Session{
		ID:           uuid.NewString(),
		Config:       cfg,
		AlertMessage: msg,
		Started:      s.now(),
	}, nil
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	data, err := json.Marshal(s.State())
	if err != nil {
		c.Close()
		return
	}
	s.statusHub.Register(c, hub.NewJSONMessage(data)).Run()
}

func (s *Server) handleLogsWS(c *websocket.Conn) {
	s.logsMu.RLock()
	backlog := make([]hub.Message, 0, len(s.logs))
	for _, entry := range s.logs {
		if data, err := json.Marshal(entry); err == nil {
			backlog = append(backlog, hub.NewJSONMessage(data))
		}
	}
	s.logsMu.RUnlock()

	s.logHub.Register(c, backlog...).Run()
}

func (s *Server) handleCameraWS(c *websocket.Conn) {
	s.cameraHub.Register(c).Run()
}
