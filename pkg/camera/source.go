package camera

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/teslashibe/blinkwatch/internal/log"
	"gocv.io/x/gocv"
)

// ErrEndOfStream is returned by Read when a video file is exhausted or the
// camera stops delivering frames.
var ErrEndOfStream = errors.New("camera: end of stream")

// Source reads frames from a camera or video file.
type Source struct {
	cfg    Config
	cap    *gocv.VideoCapture
	logger *slog.Logger
	isFile bool

	mu     sync.Mutex
	frames uint64
}

// Open opens cfg.Device. Requested size and rate are hints; drivers may
// ignore them.
func Open(cfg Config, logger *slog.Logger) (*Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %s", strings.Join(errs, "; "))
	}

	var device interface{} = cfg.Device
	idx, isIndex := cfg.DeviceIndex()
	if isIndex {
		device = idx
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera: open %s: device not available", cfg.Device)
	}

	if isIndex {
		if cfg.Width > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		}
		if cfg.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		}
		if cfg.FPS > 0 {
			vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
		}
	}

	s := &Source{
		cfg:    cfg,
		cap:    vc,
		logger: log.Or(logger, "camera"),
		isFile: !isIndex,
	}
	s.logger.Info("video source opened",
		"device", cfg.Device,
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
		"fps", vc.Get(gocv.VideoCaptureFPS),
	)
	return s, nil
}

// Read decodes the next frame into img.
func (s *Source) Read(img *gocv.Mat) error {
	if ok := s.cap.Read(img); !ok || img.Empty() {
		return ErrEndOfStream
	}
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	return nil
}

// Frames returns how many frames have been read.
func (s *Source) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// IsFile reports whether the source is a video file.
func (s *Source) IsFile() bool {
	return s.isFile
}

// FPS returns the source's reported frame rate, or the configured one.
func (s *Source) FPS() float64 {
	if fps := s.cap.Get(gocv.VideoCaptureFPS); fps > 0 {
		return fps
	}
	return float64(s.cfg.FPS)
}

// Close releases the device.
func (s *Source) Close() error {
	return s.cap.Close()
}
