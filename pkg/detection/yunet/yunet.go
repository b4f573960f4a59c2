// Package yunet provides the OpenCV FaceDetectorYN backend for detection.Detector.
package yunet

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-attend/pkg/detection"
	"gocv.io/x/gocv"
)

// Detector uses OpenCV's FaceDetectorYN for face detection
type Detector struct {
	detector gocv.FaceDetectorYN
	config   detection.Config
	mu       sync.Mutex // Protects inference
}

// New creates a new YuNet face detector using GoCV's built-in FaceDetectorYN
func New(cfg detection.Config) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file %s: %w", cfg.ModelPath, err)
	}

	// Input size is updated per image in Detect
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		float32(cfg.NMSThresh),
		cfg.TopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &Detector{
		detector: detector,
		config:   cfg,
	}, nil
}

// Loader returns a detection.Loader that builds a YuNet detector from cfg.
func Loader(cfg detection.Config) detection.Loader {
	return func(ctx context.Context) (detection.Detector, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return New(cfg)
	}
}

// Detect finds faces in the encoded image
func (d *Detector) Detect(img []byte) ([]detection.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(img) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	imgW := float64(mat.Cols())
	imgH := float64(mat.Rows())

	d.detector.SetInputSize(image.Pt(mat.Cols(), mat.Rows()))

	out := gocv.NewMat()
	defer out.Close()

	d.detector.Detect(mat, &out)

	faces := make([]detection.Face, 0, out.Rows())
	for r := 0; r < out.Rows(); r++ {
		faces = append(faces, parseRow(out, r, imgW, imgH))
	}

	return faces, nil
}

// parseRow reads one YuNet output row (15 columns):
// 0-3: x, y, w, h (bounding box in pixels)
// 4-13: 5 facial landmarks (x,y pairs)
// 14: face score
func parseRow(out gocv.Mat, r int, imgW, imgH float64) detection.Face {
	at := func(c int) float64 { return float64(out.GetFloatAt(r, c)) }

	landmarks := make([]detection.Point, 0, 5)
	for c := 4; c < 14; c += 2 {
		landmarks = append(landmarks, detection.Point{X: at(c) / imgW, Y: at(c+1) / imgH})
	}

	return detection.Face{
		X:          at(0) / imgW,
		Y:          at(1) / imgH,
		W:          at(2) / imgW,
		H:          at(3) / imgH,
		Confidence: at(14),
		Landmarks:  landmarks,
	}
}

// Close releases the detector resources
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
