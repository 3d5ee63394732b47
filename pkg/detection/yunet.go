package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YuNet uses OpenCV's FaceDetectorYN. Besides the face box it reports
// both eye centres, so it pairs with LandmarkEyes.
type YuNet struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a YuNet face detector from cfg.ModelPath
func NewYuNet(cfg Config) (*YuNet, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	// Input size is updated per frame
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNet{
		detector: detector,
		config:   cfg,
	}, nil
}

// Detect finds faces in the frame
func (d *YuNet) Detect(img gocv.Mat) ([]Detection, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	src := img
	if img.Channels() == 1 {
		// FaceDetectorYN expects three channels
		src = gocv.NewMat()
		defer src.Close()
		gocv.CvtColor(img, &src, gocv.ColorGrayToBGR)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	imgW := float64(src.Cols())
	imgH := float64(src.Rows())

	d.detector.SetInputSize(image.Pt(src.Cols(), src.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(src, &faces)

	var detections []Detection
	for r := 0; r < faces.Rows(); r++ {
		// 15 columns per face:
		// 0-3: x, y, w, h (bounding box in pixels)
		// 4-5: right eye, 6-7: left eye, 8-13: nose and mouth corners
		// 14: face score
		x := float64(faces.GetFloatAt(r, 0))
		y := float64(faces.GetFloatAt(r, 1))
		w := float64(faces.GetFloatAt(r, 2))
		h := float64(faces.GetFloatAt(r, 3))
		score := float64(faces.GetFloatAt(r, 14))

		eyes := []EyePoint{
			{X: float64(faces.GetFloatAt(r, 4)) / imgW, Y: float64(faces.GetFloatAt(r, 5)) / imgH},
			{X: float64(faces.GetFloatAt(r, 6)) / imgW, Y: float64(faces.GetFloatAt(r, 7)) / imgH},
		}

		detections = append(detections, Detection{
			X:          x / imgW,
			Y:          y / imgH,
			W:          w / imgW,
			H:          h / imgH,
			Confidence: score,
			Eyes:       eyes,
		})
	}

	return detections, nil
}

// Close releases the detector resources
func (d *YuNet) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
