// Package landmark fetches 68-point facial landmarks for a detected face.
//
// Shape prediction runs in a separate inference service; this package
// holds the client side and a mock for tests.
package landmark

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/blinkwatch/pkg/detection"
	"github.com/teslashibe/blinkwatch/pkg/ear"
)

// ErrNoFace is returned when the service finds no face in the given box.
var ErrNoFace = errors.New("landmark: no face found")

// Provider returns the landmarks of the face inside box.
type Provider interface {
	Landmarks(ctx context.Context, jpeg []byte, box detection.Detection) (ear.Face, error)
}

// ServiceError is a non-2xx response from the landmark service.
type ServiceError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("landmark: service error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may succeed when repeated.
func (e *ServiceError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
