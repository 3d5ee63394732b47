// Package overlay draws tracking state onto video frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

// DefaultWatermark is drawn centred at the bottom of every frame.
const DefaultWatermark = "I am watching you"

// Status is what a frame shows.
type Status struct {
	Face *image.Rectangle
	Eyes []image.Rectangle

	FacePresent bool
	EyesVisible bool

	EAR    float64
	HasEAR bool

	Blinks     uint
	EyesMissed time.Duration
	Alerting   bool
}

// Style controls colours and fonts.
type Style struct {
	FaceColor      color.RGBA
	EyeColor       color.RGBA
	TextColor      color.RGBA
	AlertColor     color.RGBA
	WatermarkColor color.RGBA

	Font      gocv.HersheyFont
	TextScale float64
	Thickness int

	Watermark string
}

// DefaultStyle returns the classic look: blue face, green eyes, red text,
// yellow watermark.
func DefaultStyle() Style {
	return Style{
		FaceColor:      color.RGBA{R: 0, G: 0, B: 255, A: 0},
		EyeColor:       color.RGBA{R: 0, G: 255, B: 0, A: 0},
		TextColor:      color.RGBA{R: 255, G: 0, B: 0, A: 0},
		AlertColor:     color.RGBA{R: 255, G: 0, B: 0, A: 0},
		WatermarkColor: color.RGBA{R: 255, G: 255, B: 0, A: 0},
		Font:           gocv.FontHersheySimplex,
		TextScale:      0.7,
		Thickness:      2,
		Watermark:      DefaultWatermark,
	}
}

// Line is one positioned text.
type Line struct {
	Text string
	At   image.Point
}

const (
	lineX      = 10
	lineHeight = 30
)

// Lines returns the status texts in drawing order. The layout keeps the
// eye error on the first line, elapsed time on the second and the blink
// count on the third.
func Lines(s Status) []Line {
	var lines []Line
	if s.FacePresent && !s.EyesVisible {
		lines = append(lines,
			Line{"Error: Eyes not detected", image.Pt(lineX, lineHeight)},
			Line{fmt.Sprintf("Time: %d sec", int(s.EyesMissed.Seconds())), image.Pt(lineX, 2*lineHeight)},
		)
	}
	lines = append(lines, Line{fmt.Sprintf("Blink Count: %d", s.Blinks), image.Pt(lineX, 3*lineHeight)})
	if s.HasEAR {
		lines = append(lines, Line{fmt.Sprintf("EAR: %.2f", s.EAR), image.Pt(lineX, 4*lineHeight)})
	}
	return lines
}

// centredBottom places text of the given size horizontally centred, one
// text height above the bottom edge.
func centredBottom(frame image.Point, text image.Point) image.Point {
	return image.Pt(frame.X/2-text.X/2, frame.Y-text.Y)
}

// Renderer draws Status onto frames.
type Renderer struct {
	style Style
}

// NewRenderer creates a renderer.
func NewRenderer(style Style) *Renderer {
	return &Renderer{style: style}
}

// Draw annotates img in place.
func (r *Renderer) Draw(img *gocv.Mat, s Status) {
	st := r.style

	if s.Face != nil {
		gocv.Rectangle(img, *s.Face, st.FaceColor, st.Thickness)
	}
	for _, e := range s.Eyes {
		gocv.Rectangle(img, e, st.EyeColor, st.Thickness)
	}

	for _, l := range Lines(s) {
		gocv.PutText(img, l.Text, l.At, st.Font, st.TextScale, st.TextColor, st.Thickness)
	}

	frame := image.Pt(img.Cols(), img.Rows())
	if s.Alerting {
		r.drawAlert(img, frame)
	}

	if st.Watermark != "" {
		size := gocv.GetTextSize(st.Watermark, st.Font, 1, st.Thickness)
		gocv.PutText(img, st.Watermark, centredBottom(frame, size), st.Font, 1, st.WatermarkColor, st.Thickness)
	}
}

func (r *Renderer) drawAlert(img *gocv.Mat, frame image.Point) {
	const text = "ALERT"
	st := r.style

	gocv.Rectangle(img, image.Rect(0, 0, frame.X, frame.Y), st.AlertColor, 8)

	size := gocv.GetTextSize(text, st.Font, 1.5, 3)
	at := image.Pt(frame.X/2-size.X/2, frame.Y/2)
	gocv.PutText(img, text, at, st.Font, 1.5, st.AlertColor, 3)
}
