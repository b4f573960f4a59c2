package detection

import (
	"context"
	"sync"
)

// Mock implements Detector for testing. Counts are consumed in order,
// one per Detect call; the last count repeats once the script runs out.
type Mock struct {
	// DetectFunc, when set, replaces the scripted counts.
	DetectFunc func(img []byte) ([]Face, error)

	mu     sync.Mutex
	counts []int
	calls  int
	closed bool
}

// NewMock creates a mock detector reporting the given face counts.
func NewMock(counts ...int) *Mock {
	return &Mock{counts: counts}
}

// Detect implements Detector.
func (m *Mock) Detect(img []byte) ([]Face, error) {
	m.mu.Lock()
	fn := m.DetectFunc
	n := 0
	if len(m.counts) > 0 {
		idx := m.calls
		if idx >= len(m.counts) {
			idx = len(m.counts) - 1
		}
		n = m.counts[idx]
	}
	m.calls++
	m.mu.Unlock()

	if fn != nil {
		return fn(img)
	}
	return Faces(n), nil
}

// SetCounts replaces the scripted counts and restarts the script.
func (m *Mock) SetCounts(counts ...int) {
	m.mu.Lock()
	m.counts = counts
	m.calls = 0
	m.mu.Unlock()
}

// Calls returns how many times Detect ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close implements Detector.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Loader returns a Loader that hands out m.
func (m *Mock) Loader() Loader {
	return func(ctx context.Context) (Detector, error) {
		return m, nil
	}
}

// Faces builds n evenly spaced synthetic faces.
func Faces(n int) []Face {
	if n <= 0 {
		return nil
	}
	faces := make([]Face, n)
	w := 1.0 / float64(n)
	for i := range faces {
		faces[i] = Face{X: float64(i) * w, Y: 0.2, W: w * 0.8, H: 0.4, Confidence: 0.9}
	}
	return faces
}
