package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Cascade detects faces with an OpenCV Haar cascade
type Cascade struct {
	classifier gocv.CascadeClassifier
	config     Config
	mu         sync.Mutex
}

func loadCascade(path string) (gocv.CascadeClassifier, error) {
	if _, err := os.Stat(path); err != nil {
		return gocv.CascadeClassifier{}, fmt.Errorf("cascade file not found: %s", path)
	}
	c := gocv.NewCascadeClassifier()
	if !c.Load(path) {
		c.Close()
		return gocv.CascadeClassifier{}, fmt.Errorf("load cascade %s", path)
	}
	return c, nil
}

// NewCascade loads cfg.FaceCascade
func NewCascade(cfg Config) (*Cascade, error) {
	c, err := loadCascade(cfg.FaceCascade)
	if err != nil {
		return nil, err
	}
	return &Cascade{classifier: c, config: cfg}, nil
}

// Detect finds faces in the frame
func (c *Cascade) Detect(img gocv.Mat) ([]Detection, error) {
	gray, err := toGray(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	c.mu.Lock()
	rects := c.classifier.DetectMultiScaleWithParams(
		gray,
		c.config.ScaleFactor,
		c.config.MinNeighbors,
		0,
		image.Pt(c.config.MinFaceSize, c.config.MinFaceSize),
		image.Pt(0, 0),
	)
	c.mu.Unlock()

	imgW := float64(gray.Cols())
	imgH := float64(gray.Rows())

	dets := make([]Detection, 0, len(rects))
	for _, r := range rects {
		dets = append(dets, Detection{
			X:          float64(r.Min.X) / imgW,
			Y:          float64(r.Min.Y) / imgH,
			W:          float64(r.Dx()) / imgW,
			H:          float64(r.Dy()) / imgH,
			Confidence: 1.0, // Haar cascades do not score detections
		})
	}
	return dets, nil
}

// Close releases the classifier
func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifier.Close()
}

// CascadeEyes finds eyes (or an eye pair) inside a face with a Haar cascade
type CascadeEyes struct {
	classifier gocv.CascadeClassifier
	mu         sync.Mutex
}

// NewCascadeEyes loads cfg.EyeCascade
func NewCascadeEyes(cfg Config) (*CascadeEyes, error) {
	c, err := loadCascade(cfg.EyeCascade)
	if err != nil {
		return nil, err
	}
	return &CascadeEyes{classifier: c}, nil
}

// LocateEyes searches the face region only
func (e *CascadeEyes) LocateEyes(img gocv.Mat, face Detection) ([]image.Rectangle, error) {
	gray, err := toGray(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	roi := face.Rect(gray.Cols(), gray.Rows())
	if roi.Empty() {
		return nil, nil
	}

	region := gray.Region(roi)
	defer region.Close()

	e.mu.Lock()
	found := e.classifier.DetectMultiScale(region)
	e.mu.Unlock()

	rects := make([]image.Rectangle, 0, len(found))
	for _, r := range found {
		rects = append(rects, r.Add(roi.Min))
	}
	return rects, nil
}

// Close releases the classifier
func (e *CascadeEyes) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.classifier.Close()
}
