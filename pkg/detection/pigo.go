package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	pigo "github.com/esimov/pigo/core"
	"gocv.io/x/gocv"
)

// Pigo detects faces with the pigo pixel-intensity cascade and, when a
// puploc cascade is loaded, localises both pupils. A pupil that cannot be
// localised is left out of Detection.Eyes, so LandmarkEyes reports the eyes
// as not visible.
type Pigo struct {
	face   *pigo.Pigo
	puploc *pigo.PuplocCascade
	config Config
	mu     sync.Mutex
}

// NewPigo unpacks cfg.PigoFaceCascade and, if set, cfg.PigoPuplocCascade
func NewPigo(cfg Config) (*Pigo, error) {
	data, err := os.ReadFile(cfg.PigoFaceCascade)
	if err != nil {
		return nil, fmt.Errorf("read pigo cascade: %w", err)
	}

	face, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack pigo cascade: %w", err)
	}

	p := &Pigo{face: face, config: cfg}

	if cfg.PigoPuplocCascade != "" {
		data, err := os.ReadFile(cfg.PigoPuplocCascade)
		if err != nil {
			return nil, fmt.Errorf("read puploc cascade: %w", err)
		}
		p.puploc, err = pigo.NewPuplocCascade().UnpackCascade(data)
		if err != nil {
			return nil, fmt.Errorf("unpack puploc cascade: %w", err)
		}
	}

	return p, nil
}

// Detect finds faces in the frame
func (p *Pigo) Detect(img gocv.Mat) ([]Detection, error) {
	gray, err := toGray(img)
	if err != nil {
		return nil, err
	}
	defer gray.Close()

	rows, cols := gray.Rows(), gray.Cols()
	imgParams := pigo.ImageParams{
		Pixels: gray.ToBytes(),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}

	maxSize := rows
	if cols > maxSize {
		maxSize = cols
	}
	params := pigo.CascadeParams{
		MinSize:     p.config.MinFaceSize,
		MaxSize:     maxSize,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: imgParams,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	raw := p.face.RunCascade(params, 0.0)
	raw = p.face.ClusterDetections(raw, 0.2)

	var dets []Detection
	for _, d := range raw {
		if float64(d.Q) < p.config.PigoQualityThresh {
			continue
		}

		// pigo reports the box centre and side length
		half := float64(d.Scale) / 2
		det := Detection{
			X:          (float64(d.Col) - half) / float64(cols),
			Y:          (float64(d.Row) - half) / float64(rows),
			W:          float64(d.Scale) / float64(cols),
			H:          float64(d.Scale) / float64(rows),
			Confidence: qualityToConfidence(float64(d.Q)),
		}

		if p.puploc != nil {
			det.Eyes = p.pupils(d, imgParams, rows, cols)
		}
		dets = append(dets, det)
	}

	return dets, nil
}

// pupils runs the puploc cascade from the usual eye offsets of a face box
func (p *Pigo) pupils(d pigo.Detection, img pigo.ImageParams, rows, cols int) []EyePoint {
	scale := float32(d.Scale)
	starts := []pigo.Puploc{
		{
			Row:      d.Row - int(0.075*scale),
			Col:      d.Col - int(0.175*scale),
			Scale:    scale * 0.25,
			Perturbs: 63,
		},
		{
			Row:      d.Row - int(0.075*scale),
			Col:      d.Col + int(0.185*scale),
			Scale:    scale * 0.25,
			Perturbs: 63,
		},
	}

	var eyes []EyePoint
	for _, start := range starts {
		found := p.puploc.RunDetector(start, img, 0.0, false)
		if found == nil || found.Row <= 0 || found.Col <= 0 {
			continue
		}
		pt := image.Pt(found.Col, found.Row)
		if !pt.In(image.Rect(0, 0, cols, rows)) {
			continue
		}
		eyes = append(eyes, EyePoint{
			X: float64(found.Col) / float64(cols),
			Y: float64(found.Row) / float64(rows),
		})
	}
	return eyes
}

// qualityToConfidence squashes pigo's unbounded quality score into 0-1
func qualityToConfidence(q float64) float64 {
	if q <= 0 {
		return 0
	}
	return q / (q + 10)
}

// Close is a no-op; pigo holds no native resources
func (p *Pigo) Close() error {
	return nil
}
