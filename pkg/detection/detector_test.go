package detection

import (
	"testing"
)

func TestFace_Center(t *testing.T) {
	tests := []struct {
		name    string
		face    Face
		expectX float64
		expectY float64
	}{
		{
			name:    "center of image",
			face:    Face{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			expectX: 0.5,
			expectY: 0.5,
		},
		{
			name:    "top left corner",
			face:    Face{X: 0, Y: 0, W: 0.2, H: 0.2},
			expectX: 0.1,
			expectY: 0.1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x, y := tc.face.Center()
			if x != tc.expectX {
				t.Errorf("Center X: got %.2f, want %.2f", x, tc.expectX)
			}
			if y != tc.expectY {
				t.Errorf("Center Y: got %.2f, want %.2f", y, tc.expectY)
			}
		})
	}
}

func TestFace_Area(t *testing.T) {
	area := Face{W: 0.1, H: 0.2}.Area()
	if diff := area - 0.02; diff < -0.0001 || diff > 0.0001 {
		t.Errorf("Area: got %.4f, want 0.02", area)
	}
}

func TestResult(t *testing.T) {
	r := NewResult(Faces(2))
	if r.FaceCount != 2 || !r.Multiple() {
		t.Errorf("Expected two faces flagged multiple, got %+v", r)
	}
	if NewResult(nil).Multiple() {
		t.Error("Empty result should not be multiple")
	}
}

func TestPrimary(t *testing.T) {
	tests := []struct {
		name      string
		faces     []Face
		expectNil bool
		expectIdx int
	}{
		{
			name:      "no faces",
			faces:     nil,
			expectNil: true,
		},
		{
			name:      "single face",
			faces:     []Face{{X: 0.4, Y: 0.4, W: 0.2, H: 0.2, Confidence: 0.9}},
			expectIdx: 0,
		},
		{
			name: "nearest face wins over a sharper background face",
			faces: []Face{
				{X: 0.7, Y: 0.1, W: 0.1, H: 0.1, Confidence: 0.98},
				{X: 0.2, Y: 0.2, W: 0.4, H: 0.5, Confidence: 0.7},
			},
			expectIdx: 1,
		},
		{
			name: "equal boxes pick the more confident",
			faces: []Face{
				{X: 0.0, Y: 0.0, W: 0.3, H: 0.3, Confidence: 0.65},
				{X: 0.5, Y: 0.5, W: 0.3, H: 0.3, Confidence: 0.8},
			},
			expectIdx: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Primary(tc.faces)
			if tc.expectNil {
				if got != nil {
					t.Errorf("Primary: expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Primary: expected a face, got nil")
			}
			if got != &tc.faces[tc.expectIdx] {
				t.Errorf("Primary: got %+v, want %+v", *got, tc.faces[tc.expectIdx])
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ModelPath == "" {
		t.Error("DefaultConfig: ModelPath should not be empty")
	}
	if cfg.ConfidenceThresh <= 0 || cfg.ConfidenceThresh > 1 {
		t.Errorf("DefaultConfig: ConfidenceThresh should be 0-1, got %f", cfg.ConfidenceThresh)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		t.Errorf("DefaultConfig: input size should be positive, got %dx%d", cfg.InputWidth, cfg.InputHeight)
	}
}
