package overlay

import (
	"image"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

func TestLines(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   []string
	}{
		{
			name:   "no face",
			status: Status{Blinks: 3},
			want:   []string{"Blink Count: 3"},
		},
		{
			name:   "eyes missing",
			status: Status{FacePresent: true, EyesMissed: 4900 * time.Millisecond, Blinks: 1},
			want:   []string{"Error: Eyes not detected", "Time: 4 sec", "Blink Count: 1"},
		},
		{
			name:   "eyes visible with ratio",
			status: Status{FacePresent: true, EyesVisible: true, HasEAR: true, EAR: 0.234, Blinks: 7},
			want:   []string{"Blink Count: 7", "EAR: 0.23"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := texts(Lines(tc.status))
			if len(got) != len(tc.want) {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestLines_FixedRows(t *testing.T) {
	lines := Lines(Status{FacePresent: true, Blinks: 2})
	if lines[0].At.Y != 30 || lines[1].At.Y != 60 || lines[2].At.Y != 90 {
		t.Errorf("unexpected rows: %v", lines)
	}

	// The blink count stays on the third row when there is no error.
	only := Lines(Status{})
	if only[0].At.Y != 90 {
		t.Errorf("blink count row = %d, want 90", only[0].At.Y)
	}
}

func TestCentredBottom(t *testing.T) {
	got := centredBottom(image.Pt(640, 480), image.Pt(200, 22))
	if got != image.Pt(220, 458) {
		t.Errorf("got %v, want (220,458)", got)
	}
}

func TestRenderer_Draw(t *testing.T) {
	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	face := image.Rect(200, 100, 440, 340)
	r := NewRenderer(DefaultStyle())
	r.Draw(&img, Status{
		Face:        &face,
		Eyes:        []image.Rectangle{image.Rect(240, 160, 300, 190)},
		FacePresent: true,
		EyesVisible: true,
		Blinks:      1,
		Alerting:    true,
	})

	// Something was drawn on the black frame.
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	if gocv.CountNonZero(gray) == 0 {
		t.Error("expected drawing on the frame")
	}
}
