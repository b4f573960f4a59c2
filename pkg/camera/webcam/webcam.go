// Package webcam opens a local camera through OpenCV and serves it as a
// camera.VideoSource.
package webcam

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-attend/internal/log"
	"github.com/teslashibe/go-attend/pkg/camera"
	"gocv.io/x/gocv"
)

// Source is an open OpenCV video capture.
type Source struct {
	cfg    camera.Config
	vc     *gocv.VideoCapture
	img    gocv.Mat
	logger *slog.Logger

	mu     sync.Mutex // Protects vc and img
	seq    uint64
	ready  bool
	closed bool
}

// Open opens the configured device, video only. Any failure to reach
// the device wraps camera.ErrUnavailable.
func Open(ctx context.Context, cfg camera.Config) (*Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera config: %s", strings.Join(errs, "; "))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(device(cfg.Device))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", camera.ErrUnavailable, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s: device not opened", camera.ErrUnavailable, cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	s := &Source{
		cfg:    cfg,
		vc:     vc,
		img:    gocv.NewMat(),
		logger: log.Component("webcam").With("device", cfg.Device),
	}

	for i := 0; i < cfg.WarmupFrames; i++ {
		if ctx.Err() != nil {
			break
		}
		if s.vc.Read(&s.img) && !s.img.Empty() {
			s.ready = true
		}
	}

	s.logger.Info("camera opened",
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)))
	return s, nil
}

// Opener returns a camera.Opener bound to cfg.
func Opener(cfg camera.Config) camera.Opener {
	return camera.OpenerFunc(func(ctx context.Context) (camera.VideoSource, error) {
		return Open(ctx, cfg)
	})
}

func device(d string) interface{} {
	if n, err := strconv.Atoi(d); err == nil {
		return n
	}
	return d
}

// Ready implements camera.VideoSource. Until the device has decoded a
// frame, each call tries one read.
func (s *Source) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if !s.ready {
		s.ready = s.vc.Read(&s.img) && !s.img.Empty()
	}
	return s.ready
}

// Frame implements camera.VideoSource.
func (s *Source) Frame(ctx context.Context) (camera.Frame, error) {
	return s.grab(ctx, gocv.JPEGFileExt, []int{int(gocv.IMWriteJpegQuality), s.cfg.PreviewQuality})
}

// Still implements camera.VideoSource.
func (s *Source) Still(ctx context.Context) (camera.Frame, error) {
	if s.cfg.StillFormat == camera.FormatPNG {
		return s.grab(ctx, gocv.PNGFileExt, nil)
	}
	return s.grab(ctx, gocv.JPEGFileExt, []int{int(gocv.IMWriteJpegQuality), s.cfg.StillQuality})
}

func (s *Source) grab(ctx context.Context, ext gocv.FileExt, params []int) (camera.Frame, error) {
	if err := ctx.Err(); err != nil {
		return camera.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return camera.Frame{}, camera.ErrClosed
	}

	if ok := s.vc.Read(&s.img); !ok || s.img.Empty() {
		s.ready = false
		return camera.Frame{}, camera.ErrNotReady
	}
	s.ready = true

	buf, err := gocv.IMEncodeWithParams(ext, s.img, params)
	if err != nil {
		return camera.Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close, so copy out.
	data := append([]byte(nil), buf.GetBytes()...)

	s.seq++
	format := camera.FormatJPEG
	if ext == gocv.PNGFileExt {
		format = camera.FormatPNG
	}
	return camera.Frame{
		Data:       data,
		Format:     format,
		Width:      s.img.Cols(),
		Height:     s.img.Rows(),
		Seq:        s.seq,
		CapturedAt: time.Now(),
	}, nil
}

// Close stops the device. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.ready = false
	s.img.Close()
	err := s.vc.Close()
	s.logger.Info("camera closed", "frames", s.seq)
	return err
}
