// Package blink tracks eye closure across camera frames.
//
// The tracker turns a per-frame signal (is a face present, are the eyes
// visible, what is the eye aspect ratio) into blink counts and alert
// decisions. It performs no I/O: the caller renders, logs and speaks.
//
//	tr := blink.NewTracker(blink.DefaultConfig(), time.Now())
//	for frame := range frames {
//	    out, err := tr.Observe(frame)
//	    ...
//	}
package blink

import (
	"errors"
	"fmt"
	"time"
)

// ErrEARWithoutEyes is returned when a frame carries an eye aspect ratio
// but reports the eyes as not visible.
var ErrEARWithoutEyes = errors.New("blink: eye aspect ratio supplied while eyes are not visible")

// Phase is the tracker's position in the eye state machine.
type Phase int

const (
	// EyesOpen means the eyes are visible and above the threshold.
	EyesOpen Phase = iota
	// EyesClosing means at least one consecutive frame was below the threshold.
	EyesClosing
	// EyesNotVisibleWaiting means the eyes are gone but the alert has not fired.
	EyesNotVisibleWaiting
	// EyesNotVisibleAlerted means the eyes are gone and the alert has fired.
	EyesNotVisibleAlerted
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case EyesOpen:
		return "eyes_open"
	case EyesClosing:
		return "eyes_closing"
	case EyesNotVisibleWaiting:
		return "eyes_not_visible_waiting"
	case EyesNotVisibleAlerted:
		return "eyes_not_visible_alerted"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for q := EyesOpen; q <= EyesNotVisibleAlerted; q++ {
		if q.String() == string(b) {
			*p = q
			return nil
		}
	}
	return fmt.Errorf("blink: unknown phase %q", b)
}

// Frame is the per-frame signal produced by the frame pipeline.
type Frame struct {
	FacePresent bool
	EyesVisible bool

	// EAR is only meaningful when HasEAR is set, which requires EyesVisible.
	EAR    float64
	HasEAR bool

	Now time.Time
}

// Outcome is the tracker's decision for one frame.
type Outcome struct {
	Phase Phase

	// Closing is set while the frame is inside a closed-eye run.
	Closing bool

	// BlinkCompleted is set on the frame that ends a closed-eye run.
	BlinkCompleted bool

	TotalBlinks uint

	// AlertFire asks the caller to (re-)trigger the alert this frame.
	AlertFire bool

	// AlertRepeat distinguishes a cooldown re-fire from the first fire.
	AlertRepeat bool

	// EyesMissingFor is how long the eyes have been out of sight.
	EyesMissingFor time.Duration
}

// State is the complete tracker state for one session.
type State struct {
	LowFrames       uint
	TotalBlinks     uint
	LastEyesVisible time.Time
	AlertActive     bool
	LastAlert       time.Time // zero when no alert fired
	Phase           Phase
}

// NewState returns the state of a session that starts at start.
func NewState(start time.Time) State {
	return State{LastEyesVisible: start}
}

// Step applies one frame to s and returns the next state and the outcome.
// Step is pure: s is not modified. On ErrEARWithoutEyes the returned state
// equals s.
func Step(cfg Config, s State, f Frame) (State, Outcome, error) {
	if !f.FacePresent {
		next := NewState(f.Now)
		return next, Outcome{Phase: next.Phase}, nil
	}

	if f.HasEAR && !f.EyesVisible {
		return s, Outcome{Phase: s.Phase, TotalBlinks: s.TotalBlinks}, ErrEARWithoutEyes
	}

	var out Outcome

	if !f.EyesVisible {
		s.LowFrames = 0
		missing := f.Now.Sub(s.LastEyesVisible)

		switch {
		case !s.AlertActive && missing >= cfg.AlertDuration:
			s.AlertActive = true
			s.LastAlert = f.Now
			out.AlertFire = true
		case s.AlertActive && f.Now.Sub(s.LastAlert) >= cfg.Cooldown:
			s.LastAlert = f.Now
			out.AlertFire = true
			out.AlertRepeat = true
		}

		if s.AlertActive {
			s.Phase = EyesNotVisibleAlerted
		} else {
			s.Phase = EyesNotVisibleWaiting
		}
		out.EyesMissingFor = missing
	} else {
		s.LastEyesVisible = f.Now
		s.AlertActive = false

		if f.HasEAR {
			if f.EAR < cfg.Threshold {
				s.LowFrames++
				out.Closing = true
			} else if s.LowFrames >= 1 {
				s.TotalBlinks++
				s.LowFrames = 0
				out.BlinkCompleted = true
			}
		}

		if s.LowFrames > 0 {
			s.Phase = EyesClosing
		} else {
			s.Phase = EyesOpen
		}
	}

	out.Phase = s.Phase
	out.TotalBlinks = s.TotalBlinks
	return s, out, nil
}

// Tracker owns the state of one tracking session.
// It is not safe for concurrent use; one goroutine feeds it frames.
type Tracker struct {
	cfg   Config
	state State
}

// NewTracker starts a session at start.
func NewTracker(cfg Config, start time.Time) *Tracker {
	return &Tracker{cfg: cfg, state: NewState(start)}
}

// Observe feeds one frame to the tracker.
func (t *Tracker) Observe(f Frame) (Outcome, error) {
	next, out, err := Step(t.cfg, t.state, f)
	t.state = next
	return out, err
}

// State returns a copy of the current state.
func (t *Tracker) State() State {
	return t.state
}

// Config returns the session configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}
