// Package detection turns camera frames into face counts. It wraps a
// face-detection backend behind a lazily loaded Adapter so the capture
// loop can poll it without caring how inference is done.
package detection

// Point is a landmark position (0-1 normalized).
type Point struct {
	X, Y float64
}

// Face represents a detected face
type Face struct {
	X, Y       float64 // Top-left position (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection confidence (0-1)
	Landmarks  []Point // Eyes, nose tip, mouth corners when the backend provides them
}

// Center returns the center point of the face box
func (f Face) Center() (x, y float64) {
	return f.X + f.W/2, f.Y + f.H/2
}

// Area returns the area of the bounding box
func (f Face) Area() float64 {
	return f.W * f.H
}

// Result is the outcome of one detection pass over a frame.
type Result struct {
	FaceCount int    `json:"face_count"`
	Faces     []Face `json:"faces,omitempty"`
}

// NewResult builds a Result from backend detections.
func NewResult(faces []Face) Result {
	return Result{FaceCount: len(faces), Faces: faces}
}

// Multiple reports whether more than one face was found.
func (r Result) Multiple() bool {
	return r.FaceCount > 1
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in the encoded image and returns their positions
	Detect(img []byte) ([]Face, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence (default 0.6)
	NMSThresh        float64 // Non-maximum suppression threshold
	TopK             int     // Maximum candidates before NMS
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns production defaults for YuNet.
// The confidence floor is higher than a tracking setup would use since a
// spurious second face blocks check-in.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.6,
		NMSThresh:        0.3,
		TopK:             5000,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// Primary returns the face a check-in is about: the largest box, with
// the higher confidence winning between boxes of equal size. It returns
// nil when there are no faces.
func Primary(faces []Face) *Face {
	var primary *Face
	for i := range faces {
		f := &faces[i]
		if primary == nil || f.Area() > primary.Area() ||
			(f.Area() == primary.Area() && f.Confidence > primary.Confidence) {
			primary = f
		}
	}
	return primary
}
