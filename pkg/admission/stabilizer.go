package admission

import (
	"sync"

	"github.com/teslashibe/go-attend/pkg/metrics"
)

// Stabilizer is a concurrency-safe wrapper around Step with callbacks.
type Stabilizer struct {
	threshold int

	mu       sync.Mutex
	snap     Snapshot
	onWarn   func(count int)
	onChange func(from, to State)
}

// NewStabilizer creates a stabilizer in the Unknown state.
func NewStabilizer(threshold int) *Stabilizer {
	if threshold < 1 {
		threshold = 1
	}
	return &Stabilizer{threshold: threshold}
}

// OnWarn sets the callback fired once per multi-face episode with the
// face count that triggered it.
func (s *Stabilizer) OnWarn(fn func(count int)) {
	s.mu.Lock()
	s.onWarn = fn
	s.mu.Unlock()
}

// OnChange sets the callback fired on every state change.
func (s *Stabilizer) OnChange(fn func(from, to State)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Observe applies one tick reporting n faces.
func (s *Stabilizer) Observe(n int) Event {
	s.mu.Lock()
	prev := s.snap
	next, ev := Step(prev, n, s.threshold)
	s.snap = next
	onWarn, onChange := s.onWarn, s.onChange
	s.mu.Unlock()

	if prev.State != next.State {
		metrics.RecordAdmissionTransition(prev.State.String(), next.State.String())
		if onChange != nil {
			onChange(prev.State, next.State)
		}
	}
	if ev == EventWarn {
		metrics.RecordMultiFaceWarning()
		if onWarn != nil {
			onWarn(n)
		}
	}
	return ev
}

// State returns the current verdict.
func (s *Stabilizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.State
}

// Snapshot returns the full current state.
func (s *Stabilizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Threshold returns the confirmation threshold.
func (s *Stabilizer) Threshold() int {
	return s.threshold
}

// Reset returns to Unknown, discarding all history.
func (s *Stabilizer) Reset() {
	s.mu.Lock()
	s.snap = Snapshot{}
	s.mu.Unlock()
}
