package landmark

import (
	"context"
	"sync"

	"github.com/teslashibe/blinkwatch/pkg/detection"
	"github.com/teslashibe/blinkwatch/pkg/ear"
)

// Mock implements Provider for testing.
type Mock struct {
	// LandmarksFunc is called when Landmarks is invoked.
	// If nil, returns ErrNoFace.
	LandmarksFunc func(ctx context.Context, jpeg []byte, box detection.Detection) (ear.Face, error)

	mu    sync.Mutex
	calls int
}

// Landmarks calls LandmarksFunc and counts the call.
func (m *Mock) Landmarks(ctx context.Context, jpeg []byte, box detection.Detection) (ear.Face, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.LandmarksFunc != nil {
		return m.LandmarksFunc(ctx, jpeg, box)
	}
	return ear.Face{}, ErrNoFace
}

// Calls returns how many times Landmarks was called.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Fixed returns a mock whose faces have the given eye aspect ratio.
func Fixed(ratio float64) *Mock {
	face := FaceWithRatio(ratio)
	return &Mock{
		LandmarksFunc: func(ctx context.Context, jpeg []byte, box detection.Detection) (ear.Face, error) {
			return face, nil
		},
	}
}

// FaceWithRatio builds a synthetic face whose eyes both have the given ratio.
func FaceWithRatio(ratio float64) ear.Face {
	var f ear.Face
	place := func(start int, x0 float64) {
		const width = 30.0
		opening := ratio * width // both lid distances equal the opening
		pts := ear.Eye{
			{X: x0, Y: 100},
			{X: x0 + 10, Y: 100 - opening/2},
			{X: x0 + 20, Y: 100 - opening/2},
			{X: x0 + width, Y: 100},
			{X: x0 + 20, Y: 100 + opening/2},
			{X: x0 + 10, Y: 100 + opening/2},
		}
		copy(f[start:start+6], pts[:])
	}
	place(ear.RightEyeStart, 100)
	place(ear.LeftEyeStart, 200)
	return f
}

var _ Provider = (*Mock)(nil)
var _ Provider = (*Remote)(nil)
