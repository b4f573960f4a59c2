// Package camera defines the live video capability consumed by the
// capture session: a device is opened once per session, yields frames
// for detection and a single full-resolution still on capture, and is
// closed when the session ends.
package camera

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when the device cannot be opened,
	// either because access was denied or no device exists.
	ErrUnavailable = errors.New("camera: unavailable")

	// ErrNotReady is returned when the device is open but has not
	// produced decoded data yet.
	ErrNotReady = errors.New("camera: not ready")

	// ErrClosed is returned when reading from a closed source.
	ErrClosed = errors.New("camera: closed")
)

// Image formats carried by a Frame.
const (
	FormatJPEG = "image/jpeg"
	FormatPNG  = "image/png"
)

// Frame is one encoded picture taken from the live stream.
type Frame struct {
	Data       []byte
	Format     string
	Width      int
	Height     int
	Seq        uint64
	CapturedAt time.Time
}

// Empty reports whether the frame carries no image data.
func (f Frame) Empty() bool {
	return len(f.Data) == 0
}

// Ext returns the file extension matching the frame format.
func (f Frame) Ext() string {
	if f.Format == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

// VideoSource is a live, open camera stream.
type VideoSource interface {
	// Ready reports whether the stream is producing decoded frames.
	Ready() bool

	// Frame returns the current frame encoded for detection.
	// Returns ErrNotReady when no decoded data is available yet.
	Frame(ctx context.Context) (Frame, error)

	// Still freezes the current frame at full stream resolution,
	// encoded at still quality for submission.
	Still(ctx context.Context) (Frame, error)

	// Close stops the underlying device. Safe to call more than once.
	Close() error
}

// Opener acquires a VideoSource. Failures wrap ErrUnavailable.
type Opener interface {
	Open(ctx context.Context) (VideoSource, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (VideoSource, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context) (VideoSource, error) {
	return f(ctx)
}
