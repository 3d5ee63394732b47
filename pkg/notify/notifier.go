// Package notify delivers drowsiness alerts off the frame path.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/blinkwatch/internal/log"
	"github.com/teslashibe/blinkwatch/pkg/tts"
)

// DefaultMessage is spoken when no alert message is configured.
const DefaultMessage = "Wake up!"

// Kind distinguishes the first alert of an episode from cooldown repeats.
type Kind string

const (
	KindFirst  Kind = "first"
	KindRepeat Kind = "repeat"
)

// Event is one alert decision.
type Event struct {
	Kind      Kind
	At        time.Time
	SessionID string

	// MissingFor is how long the eyes had been out of sight.
	MissingFor time.Duration
}

// Stats counts what happened to events.
type Stats struct {
	Delivered uint64
	Dropped   uint64
	Failed    uint64
}

// Notifier speaks an alert message for each event. Notify never blocks:
// an event arriving while the previous one is still being spoken is
// dropped, since the speaker is already saying the same thing.
type Notifier struct {
	speaker tts.Speaker
	logger  *slog.Logger
	events  chan Event

	mu      sync.RWMutex
	message string

	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64

	// OnDelivered, when set, is called after each spoken alert.
	OnDelivered func(Event)
}

// New creates a notifier that speaks message through speaker.
func New(speaker tts.Speaker, message string, logger *slog.Logger) *Notifier {
	if message == "" {
		message = DefaultMessage
	}
	return &Notifier{
		speaker: speaker,
		logger:  log.Or(logger, "notify"),
		events:  make(chan Event, 1),
		message: message,
	}
}

// Notify queues e for delivery. It reports whether e was accepted.
func (n *Notifier) Notify(e Event) bool {
	select {
	case n.events <- e:
		return true
	default:
		n.dropped.Add(1)
		n.logger.Debug("alert dropped, speaker busy", "kind", e.Kind, "session", e.SessionID)
		return false
	}
}

// SetMessage changes the spoken text for subsequent alerts.
func (n *Notifier) SetMessage(msg string) {
	if msg == "" {
		msg = DefaultMessage
	}
	n.mu.Lock()
	n.message = msg
	n.mu.Unlock()
}

// Message returns the current alert text.
func (n *Notifier) Message() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.message
}

// Run delivers events until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-n.events:
			n.deliver(ctx, e)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, e Event) {
	msg := n.Message()
	n.logger.Info("drowsiness alert",
		"kind", e.Kind,
		"session", e.SessionID,
		"eyes_missing_s", e.MissingFor.Seconds(),
	)

	if err := n.speaker.Speak(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return
		}
		n.failed.Add(1)
		n.logger.Warn("alert speech failed", "speaker", n.speaker.Name(), "error", err)
		return
	}

	n.delivered.Add(1)
	if n.OnDelivered != nil {
		n.OnDelivered(e)
	}
}

// Stats returns delivery counters.
func (n *Notifier) Stats() Stats {
	return Stats{
		Delivered: n.delivered.Load(),
		Dropped:   n.dropped.Load(),
		Failed:    n.failed.Load(),
	}
}
