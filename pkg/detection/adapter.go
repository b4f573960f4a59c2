package detection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-attend/internal/log"
	"github.com/teslashibe/go-attend/pkg/camera"
	"github.com/teslashibe/go-attend/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// Loader creates a Detector, typically by loading a model from disk.
type Loader func(ctx context.Context) (Detector, error)

// Adapter owns one lazily loaded Detector and applies it to camera frames.
// It is safe for concurrent use.
type Adapter struct {
	load   Loader
	group  singleflight.Group
	logger *slog.Logger

	mu       sync.RWMutex
	detector Detector
	lastErr  error
}

// NewAdapter creates an adapter that loads its detector with load on first use.
func NewAdapter(load Loader, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = log.L()
	}
	return &Adapter{
		load:   load,
		logger: logger.With("component", "detection"),
	}
}

// EnsureReady loads the detector if it is not loaded yet. Concurrent
// callers share a single in-flight load. A failed load is reported as a
// *LoadError and may be retried by a later call.
func (a *Adapter) EnsureReady(ctx context.Context) error {
	if a.Ready() {
		return nil
	}

	ch := a.group.DoChan("load", func() (interface{}, error) {
		if a.Ready() {
			return nil, nil
		}

		start := time.Now()
		// The load outlives any single waiter.
		det, err := a.load(context.WithoutCancel(ctx))
		if err == nil && det == nil {
			err = errors.New("loader returned no detector")
		}

		a.mu.Lock()
		defer a.mu.Unlock()
		if err != nil {
			a.lastErr = &LoadError{Err: err}
			metrics.RecordModelLoad(false)
			a.logger.Error("model load failed", "error", err)
			return nil, a.lastErr
		}
		a.detector = det
		a.lastErr = nil
		metrics.RecordModelLoad(true)
		a.logger.Info("model loaded", "took", time.Since(start))
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// Ready reports whether the detector is loaded.
func (a *Adapter) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector != nil
}

// LastError returns the most recent load failure, or nil.
func (a *Adapter) LastError() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastErr
}

// Detect runs detection on the current frame of src.
//
// ok is false when there was no usable frame: the model is not loaded,
// the source has not decoded any data yet, or it is closed. Such a tick
// must be skipped, not treated as zero faces. Inference errors are
// logged and reported as an empty result with ok true.
func (a *Adapter) Detect(ctx context.Context, src camera.VideoSource) (Result, bool) {
	a.mu.RLock()
	det := a.detector
	a.mu.RUnlock()

	if det == nil || src == nil || !src.Ready() {
		return Result{}, false
	}

	frame, err := src.Frame(ctx)
	if err != nil {
		if !errors.Is(err, camera.ErrNotReady) && !errors.Is(err, camera.ErrClosed) && ctx.Err() == nil {
			a.logger.Debug("frame unavailable", "error", err)
		}
		return Result{}, false
	}
	if frame.Empty() {
		return Result{}, false
	}

	start := time.Now()
	faces, err := det.Detect(frame.Data)
	metrics.RecordDetectionDuration(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordDetectionError()
		a.logger.Debug("detection failed", "seq", frame.Seq, "error", err)
		return Result{}, true
	}

	return NewResult(faces), true
}

// DetectImage runs detection on a single encoded image and returns any error.
func (a *Adapter) DetectImage(ctx context.Context, img []byte) (Result, error) {
	if err := a.EnsureReady(ctx); err != nil {
		return Result{}, err
	}

	a.mu.RLock()
	det := a.detector
	a.mu.RUnlock()
	if det == nil {
		return Result{}, ErrNotReady
	}

	faces, err := det.Detect(img)
	if err != nil {
		return Result{}, err
	}
	return NewResult(faces), nil
}

// Close releases the detector. The adapter may be reloaded afterwards.
func (a *Adapter) Close() error {
	a.mu.Lock()
	det := a.detector
	a.detector = nil
	a.mu.Unlock()

	if det == nil {
		return nil
	}
	return det.Close()
}
