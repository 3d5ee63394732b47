// Package detection finds faces and eyes in camera frames
package detection

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Backend names accepted by New.
const (
	BackendCascade   = "cascade"
	BackendYuNet     = "yunet"
	BackendPigo      = "pigo"
	EyesCascade      = "cascade"
	EyesFromFaceMark = "landmarks"
)

// EyePoint is an eye centre, normalized to the frame (0-1)
type EyePoint struct {
	X, Y float64
}

// Detection represents a detected face
type Detection struct {
	X, Y       float64 // Top-left corner (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection confidence (0-1)

	// Eyes holds eye centres for backends that localise them (YuNet, pigo)
	Eyes []EyePoint
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Rect converts the detection to pixel coordinates for a frame of the given size,
// clipped to the frame.
func (d Detection) Rect(width, height int) image.Rectangle {
	r := image.Rect(
		int(d.X*float64(width)),
		int(d.Y*float64(height)),
		int((d.X+d.W)*float64(width)),
		int((d.Y+d.H)*float64(height)),
	)
	return r.Intersect(image.Rect(0, 0, width, height))
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in a BGR or grayscale frame
	Detect(img gocv.Mat) ([]Detection, error)

	// Close releases resources
	Close() error
}

// EyeLocator finds eye regions inside a detected face
type EyeLocator interface {
	// LocateEyes returns eye boxes in frame pixel coordinates.
	// An empty result means the eyes are not visible.
	LocateEyes(img gocv.Mat, face Detection) ([]image.Rectangle, error)

	Close() error
}

// Config holds detector configuration
type Config struct {
	Backend    string `yaml:"backend" json:"backend"`         // cascade, yunet or pigo
	EyeBackend string `yaml:"eye_backend" json:"eye_backend"` // cascade or landmarks

	// Haar cascades
	FaceCascade  string  `yaml:"face_cascade" json:"face_cascade"`
	EyeCascade   string  `yaml:"eye_cascade" json:"eye_cascade"`
	ScaleFactor  float64 `yaml:"scale_factor" json:"scale_factor"`
	MinNeighbors int     `yaml:"min_neighbors" json:"min_neighbors"`
	MinFaceSize  int     `yaml:"min_face_size" json:"min_face_size"` // pixels

	// YuNet
	ModelPath        string  `yaml:"model_path" json:"model_path"`
	ConfidenceThresh float64 `yaml:"confidence" json:"confidence"` // Minimum confidence (default 0.5)
	InputWidth       int     `yaml:"input_width" json:"input_width"`
	InputHeight      int     `yaml:"input_height" json:"input_height"`

	// pigo
	PigoFaceCascade   string  `yaml:"pigo_face_cascade" json:"pigo_face_cascade"`
	PigoPuplocCascade string  `yaml:"pigo_puploc_cascade" json:"pigo_puploc_cascade"`
	PigoQualityThresh float64 `yaml:"pigo_quality" json:"pigo_quality"`
}

// DefaultConfig returns the Haar cascade setup used by the desktop demo
func DefaultConfig() Config {
	return Config{
		Backend:    BackendCascade,
		EyeBackend: EyesCascade,

		FaceCascade:  "models/haarcascade_frontalface_default.xml",
		EyeCascade:   "models/haarcascade_mcs_eyepair_big.xml",
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinFaceSize:  30,

		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,

		PigoFaceCascade:   "models/facefinder",
		PigoPuplocCascade: "models/puploc",
		PigoQualityThresh: 5.0,
	}
}

// New builds the face detector and eye locator named in cfg.
// The caller closes both.
func New(cfg Config) (Detector, EyeLocator, error) {
	var (
		det Detector
		err error
	)
	switch cfg.Backend {
	case BackendCascade, "":
		det, err = NewCascade(cfg)
	case BackendYuNet:
		det, err = NewYuNet(cfg)
	case BackendPigo:
		det, err = NewPigo(cfg)
	default:
		return nil, nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, nil, err
	}

	var eyes EyeLocator
	switch cfg.EyeBackend {
	case EyesCascade, "":
		eyes, err = NewCascadeEyes(cfg)
	case EyesFromFaceMark:
		if cfg.Backend == BackendCascade || cfg.Backend == "" {
			err = fmt.Errorf("eye backend %q needs a landmark-capable face backend, not %q", cfg.EyeBackend, BackendCascade)
		} else {
			eyes = LandmarkEyes{}
		}
	default:
		err = fmt.Errorf("unknown eye backend %q", cfg.EyeBackend)
	}
	if err != nil {
		det.Close()
		return nil, nil, err
	}

	return det, eyes, nil
}

// SelectBest picks the best face from multiple detections
// Priority: confidence * 0.7 + area * 0.3
func SelectBest(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}

	if len(dets) == 1 {
		return &dets[0]
	}

	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}
	if maxArea == 0 {
		return &dets[0]
	}

	bestScore := -1.0
	var best *Detection

	for i := range dets {
		score := dets[i].Confidence*0.7 + (dets[i].Area()/maxArea)*0.3
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}

	return best
}

// LandmarkEyes reports eyes from the centres a landmark-capable face
// backend attached to the detection. Boxes are a fifth of the face wide.
type LandmarkEyes struct{}

// LocateEyes implements EyeLocator.
func (LandmarkEyes) LocateEyes(img gocv.Mat, face Detection) ([]image.Rectangle, error) {
	w, h := img.Cols(), img.Rows()
	half := int(face.W * float64(w) / 10)
	if half < 2 {
		half = 2
	}

	bounds := image.Rect(0, 0, w, h)
	var rects []image.Rectangle
	for _, e := range face.Eyes {
		cx, cy := int(e.X*float64(w)), int(e.Y*float64(h))
		r := image.Rect(cx-half, cy-half, cx+half, cy+half).Intersect(bounds)
		if !r.Empty() {
			rects = append(rects, r)
		}
	}
	return rects, nil
}

// Close implements EyeLocator.
func (LandmarkEyes) Close() error { return nil }

// toGray returns a single-channel copy of img. The caller closes it.
func toGray(img gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty image")
	}
	gray := gocv.NewMat()
	switch img.Channels() {
	case 1:
		img.CopyTo(&gray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}
	return gray, nil
}
