package webcam

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/teslashibe/go-attend/pkg/camera"
)

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := camera.DefaultConfig()
	cfg.Width = 10

	_, err := Open(context.Background(), cfg)
	if err == nil {
		t.Fatal("Expected error for invalid config")
	}
	if errors.Is(err, camera.ErrUnavailable) {
		t.Error("Config errors should not be reported as unavailable camera")
	}
}

func TestOpen_MissingDevice(t *testing.T) {
	cfg := camera.DefaultConfig()
	cfg.Device = "/nonexistent/video99"
	cfg.WarmupFrames = 0

	_, err := Open(context.Background(), cfg)
	if !errors.Is(err, camera.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
}

// TestSource_LiveDevice needs a physical camera; set ATTEND_TEST_CAMERA=0 to run.
func TestSource_LiveDevice(t *testing.T) {
	dev := os.Getenv("ATTEND_TEST_CAMERA")
	if dev == "" {
		t.Skip("ATTEND_TEST_CAMERA not set, skipping test")
	}

	cfg := camera.LowResConfig()
	cfg.Device = dev

	src, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	frame, err := src.Frame(context.Background())
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if frame.Empty() || frame.Format != camera.FormatJPEG {
		t.Errorf("Unexpected frame: %d bytes, %s", len(frame.Data), frame.Format)
	}
	if !src.Ready() {
		t.Error("Expected source ready after a decoded frame")
	}

	still, err := src.Still(context.Background())
	if err != nil {
		t.Fatalf("Still failed: %v", err)
	}
	if still.Seq <= frame.Seq {
		t.Errorf("Expected increasing sequence, got %d after %d", still.Seq, frame.Seq)
	}

	if err := src.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := src.Frame(context.Background()); !errors.Is(err, camera.ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}
}
