package app

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/teslashibe/blinkwatch/pkg/blink"
	"github.com/teslashibe/blinkwatch/pkg/notify"
	"github.com/teslashibe/blinkwatch/pkg/overlay"
	"github.com/teslashibe/blinkwatch/pkg/pipeline"
	"github.com/teslashibe/blinkwatch/pkg/web"
	"gocv.io/x/gocv"
)

// step feeds one analysed frame to the tracker and fans the outcome out
// to metrics, the notifier, the results log and the dashboard.
func (a *App) step(res pipeline.Result, now time.Time) blink.Outcome {
	a.frame++
	a.fps.tick(now)

	out, err := a.tracker.Observe(res.Signal)
	if errors.Is(err, blink.ErrEARWithoutEyes) {
		a.metrics.ContractViolation()
		a.logger.Warn("frame signal rejected", "frame", a.frame, "error", err)
	}
	a.metrics.Observe(res.Signal, out)

	if out.BlinkCompleted {
		a.logger.Debug("blink", "frame", a.frame, "total", out.TotalBlinks)
		a.logWeb("blink", fmt.Sprintf("blink %d", out.TotalBlinks))
	}

	if out.AlertFire {
		a.alerts++
		kind := notify.KindFirst
		if out.AlertRepeat {
			kind = notify.KindRepeat
		}
		a.notifier.Notify(notify.Event{
			Kind:       kind,
			At:         now,
			SessionID:  a.session.ID,
			MissingFor: out.EyesMissingFor,
		})
		a.logWeb("alert", fmt.Sprintf("%s alert, eyes missing %.1fs", kind, out.EyesMissingFor.Seconds()))
	}

	if a.results != nil {
		if err := a.results.Append(a.frame, out.BlinkCompleted); err != nil {
			a.logger.Warn("results row not written", "frame", a.frame, "error", err)
		}
	}

	if a.web != nil {
		sig := res.Signal
		alerts := a.alerts
		fps := a.fps.rate()
		a.web.UpdateState(func(s *web.Status) {
			s.Phase = out.Phase
			s.FacePresent = sig.FacePresent
			s.EyesVisible = sig.EyesVisible
			s.EAR = sig.EAR
			s.HasEAR = sig.HasEAR
			s.Blinks = out.TotalBlinks
			s.EyesMissingS = out.EyesMissingFor.Seconds()
			s.Alerting = a.tracker.State().AlertActive
			s.Alerts = alerts
			s.Frames = uint64(a.frame)
			s.FPS = fps
		})
	}
	return out
}

func (a *App) logWeb(kind, msg string) {
	if a.web != nil {
		a.web.AddLog(kind, msg)
	}
}

// overlayStatus converts an analysis and its outcome into what the frame
// shows.
func overlayStatus(res pipeline.Result, out blink.Outcome, alerting bool, size image.Point) overlay.Status {
	st := overlay.Status{
		Eyes:        res.Eyes,
		FacePresent: res.Signal.FacePresent,
		EyesVisible: res.Signal.EyesVisible,
		EAR:         res.Signal.EAR,
		HasEAR:      res.Signal.HasEAR,
		Blinks:      out.TotalBlinks,
		EyesMissed:  out.EyesMissingFor,
		Alerting:    alerting,
	}
	if res.Face != nil {
		r := res.Face.Rect(size.X, size.Y)
		st.Face = &r
	}
	return st
}

// render draws the overlay and streams the frame to dashboard viewers.
func (a *App) render(img *gocv.Mat, res pipeline.Result, out blink.Outcome) {
	if a.window == nil && (a.web == nil || a.web.CameraViewers() == 0) {
		return
	}

	size := image.Pt(img.Cols(), img.Rows())
	a.renderer.Draw(img, overlayStatus(res, out, a.tracker.State().AlertActive, size))

	if a.web == nil || a.web.CameraViewers() == 0 {
		return
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *img, []int{int(gocv.IMWriteJpegQuality), a.cfg.Camera.Quality})
	if err != nil {
		a.logger.Debug("frame encode failed", "error", err)
		return
	}
	defer buf.Close()
	a.web.SendCameraFrame(append([]byte(nil), buf.GetBytes()...))
}

// fpsMeter is an exponential moving average of the frame rate.
type fpsMeter struct {
	last time.Time
	avg  float64
}

func (m *fpsMeter) tick(now time.Time) {
	if !m.last.IsZero() {
		if dt := now.Sub(m.last).Seconds(); dt > 0 {
			inst := 1 / dt
			if m.avg == 0 {
				m.avg = inst
			} else {
				m.avg = 0.9*m.avg + 0.1*inst
			}
		}
	}
	m.last = now
}

func (m *fpsMeter) rate() float64 {
	return m.avg
}
