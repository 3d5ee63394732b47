// Package ear computes the eye aspect ratio from facial landmarks.
//
// Landmarks follow the iBUG 300-W 68-point layout produced by common
// shape predictors. Each eye is six points, starting at the outer corner
// and going clockwise.
package ear

import "math"

// Landmark index ranges in the 68-point layout.
const (
	RightEyeStart = 36
	RightEyeEnd   = 42
	LeftEyeStart  = 42
	LeftEyeEnd    = 48
	NumLandmarks  = 68
)

// Point is a landmark position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Eye is the six-point contour of one eye.
type Eye [6]Point

// Ratio returns the eye aspect ratio: the two vertical lid distances over
// twice the horizontal corner distance. An eye with no width yields 0.
func Ratio(e Eye) float64 {
	a := e[1].Dist(e[5])
	b := e[2].Dist(e[4])
	c := e[0].Dist(e[3])
	if c == 0 {
		return 0
	}
	return (a + b) / (2.0 * c)
}

// Face holds all 68 landmarks of one face.
type Face [NumLandmarks]Point

// LeftEye returns the subject's left eye (image right).
func (f *Face) LeftEye() Eye {
	var e Eye
	copy(e[:], f[LeftEyeStart:LeftEyeEnd])
	return e
}

// RightEye returns the subject's right eye (image left).
func (f *Face) RightEye() Eye {
	var e Eye
	copy(e[:], f[RightEyeStart:RightEyeEnd])
	return e
}

// Ratio returns the mean aspect ratio of both eyes.
func (f *Face) Ratio() float64 {
	return (Ratio(f.LeftEye()) + Ratio(f.RightEye())) / 2.0
}

// FromPoints builds a Face from a flat landmark list.
// It reports false unless exactly 68 points are given.
func FromPoints(pts []Point) (Face, bool) {
	var f Face
	if len(pts) != NumLandmarks {
		return f, false
	}
	copy(f[:], pts)
	return f, true
}
