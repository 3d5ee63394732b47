package pipeline

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"github.com/teslashibe/blinkwatch/pkg/blink"
	"github.com/teslashibe/blinkwatch/pkg/detection"
	"github.com/teslashibe/blinkwatch/pkg/landmark"
	"gocv.io/x/gocv"
)

type fakeFaces struct {
	dets []detection.Detection
	err  error
}

func (f *fakeFaces) Detect(gocv.Mat) ([]detection.Detection, error) { return f.dets, f.err }
func (f *fakeFaces) Close() error                                  { return nil }

type fakeEyes struct {
	rects []image.Rectangle
	err   error
}

func (f *fakeEyes) LocateEyes(gocv.Mat, detection.Detection) ([]image.Rectangle, error) {
	return f.rects, f.err
}
func (f *fakeEyes) Close() error { return nil }

var (
	oneFace  = []detection.Detection{{X: 0.25, Y: 0.25, W: 0.5, H: 0.5, Confidence: 1}}
	twoEyes  = []image.Rectangle{image.Rect(200, 180, 260, 210), image.Rect(380, 180, 440, 210)}
	frameNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func testFrame(t *testing.T) gocv.Mat {
	t.Helper()
	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { img.Close() })
	return img
}

func TestAnalyze_Signals(t *testing.T) {
	tests := []struct {
		name      string
		faces     *fakeFaces
		eyes      *fakeEyes
		marks     landmark.Provider
		wantFace  bool
		wantEyes  bool
		wantEAR   bool
		wantRatio float64
		wantErr   bool
	}{
		{
			name:  "no face",
			faces: &fakeFaces{},
			eyes:  &fakeEyes{rects: twoEyes},
		},
		{
			name:     "face without eyes",
			faces:    &fakeFaces{dets: oneFace},
			eyes:     &fakeEyes{},
			wantFace: true,
		},
		{
			name:     "eyes without landmark provider",
			faces:    &fakeFaces{dets: oneFace},
			eyes:     &fakeEyes{rects: twoEyes},
			wantFace: true,
			wantEyes: true,
		},
		{
			name:      "eyes with landmarks",
			faces:     &fakeFaces{dets: oneFace},
			eyes:      &fakeEyes{rects: twoEyes},
			marks:     landmark.Fixed(0.15),
			wantFace:  true,
			wantEyes:  true,
			wantEAR:   true,
			wantRatio: 0.15,
		},
		{
			name:     "landmark service finds no face",
			faces:    &fakeFaces{dets: oneFace},
			eyes:     &fakeEyes{rects: twoEyes},
			marks:    &landmark.Mock{},
			wantFace: true,
			wantEyes: true,
		},
		{
			name:    "detector failure reads as no face",
			faces:   &fakeFaces{err: errors.New("boom")},
			eyes:    &fakeEyes{},
			wantErr: true,
		},
		{
			name:     "eye locator failure keeps the face",
			faces:    &fakeFaces{dets: oneFace},
			eyes:     &fakeEyes{err: errors.New("boom")},
			wantFace: true,
			wantErr:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var opts []Option
			if tc.marks != nil {
				opts = append(opts, WithLandmarks(tc.marks, time.Second))
			}
			a := NewAnalyzer(tc.faces, tc.eyes, opts...)

			res, err := a.Analyze(context.Background(), testFrame(t), frameNow)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}

			s := res.Signal
			if s.FacePresent != tc.wantFace || s.EyesVisible != tc.wantEyes || s.HasEAR != tc.wantEAR {
				t.Errorf("signal = %+v", s)
			}
			if tc.wantEAR && math.Abs(s.EAR-tc.wantRatio) > 1e-9 {
				t.Errorf("EAR = %.4f, want %.4f", s.EAR, tc.wantRatio)
			}
			if !s.Now.Equal(frameNow) {
				t.Errorf("Now = %v, want %v", s.Now, frameNow)
			}
		})
	}
}

func TestAnalyze_SignalsAreValidTrackerInput(t *testing.T) {
	tr := blink.NewTracker(blink.DefaultConfig(), frameNow)
	ears := []float64{0.3, 0.1, 0.1, 0.3}

	for i, ratio := range ears {
		a := NewAnalyzer(
			&fakeFaces{dets: oneFace},
			&fakeEyes{rects: twoEyes},
			WithLandmarks(landmark.Fixed(ratio), 0),
		)
		res, err := a.Analyze(context.Background(), testFrame(t), frameNow.Add(time.Duration(i)*33*time.Millisecond))
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if _, err := tr.Observe(res.Signal); err != nil {
			t.Fatalf("frame %d: tracker rejected signal: %v", i, err)
		}
	}

	if tr.State().TotalBlinks != 1 {
		t.Errorf("TotalBlinks = %d, want 1", tr.State().TotalBlinks)
	}
}
