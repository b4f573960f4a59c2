// Package admission debounces per-frame face counts into a stable
// single-face / multi-face verdict that gates capture.
//
// Entering MultiFace is immediate. Leaving it requires Threshold
// consecutive ticks with exactly one face, so a single clean frame in the
// middle of a crowded scene cannot clear the warning.
package admission

import (
	"fmt"
	"time"
)

// State is the stabilized admission verdict.
type State int

const (
	Unknown State = iota
	SingleFace
	MultiFace
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case SingleFace:
		return "single_face"
	case MultiFace:
		return "multi_face"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unknown":
		*s = Unknown
	case "single_face":
		*s = SingleFace
	case "multi_face":
		*s = MultiFace
	default:
		return fmt.Errorf("admission: unknown state %q", text)
	}
	return nil
}

// Event is a side effect produced by a tick.
type Event int

const (
	EventNone Event = iota
	// EventWarn fires once when a multi-face episode begins.
	EventWarn
	// EventCleared fires when a multi-face episode ends.
	EventCleared
)

func (e Event) String() string {
	switch e {
	case EventWarn:
		return "warn"
	case EventCleared:
		return "cleared"
	default:
		return "none"
	}
}

// Snapshot is the full stabilizer state.
type Snapshot struct {
	State             State `json:"state"`
	ConsecutiveSingle int   `json:"consecutive_single"`
	LastCount         int   `json:"last_count"`
	Warned            bool  `json:"warned"`
}

// Step applies one tick reporting n faces. It is a pure function of its inputs.
func Step(s Snapshot, n, threshold int) (Snapshot, Event) {
	if threshold < 1 {
		threshold = 1
	}

	next := s
	next.LastCount = n

	switch {
	case s.State != MultiFace && n > 1:
		next.State = MultiFace
		next.ConsecutiveSingle = 0
		if !s.Warned {
			next.Warned = true
			return next, EventWarn
		}

	case s.State == MultiFace && n == 1:
		next.ConsecutiveSingle++
		if next.ConsecutiveSingle >= threshold {
			next.State = SingleFace
			next.ConsecutiveSingle = 0
			next.Warned = false
			return next, EventCleared
		}

	case s.State == MultiFace:
		// Zero faces, or still crowded: no progress toward clearing.
		next.ConsecutiveSingle = 0

	default:
		next.State = SingleFace
		next.ConsecutiveSingle = 0
	}

	return next, EventNone
}

// Config holds tunable stabilizer parameters.
type Config struct {
	Threshold int           // Consecutive single-face ticks needed to clear MultiFace
	Interval  time.Duration // Poll cadence
}

// DefaultConfig returns the reference tuning: 10 confirmations at 200ms,
// so a multi-face warning clears after two clean seconds.
func DefaultConfig() Config {
	return Config{
		Threshold: 10,
		Interval:  200 * time.Millisecond,
	}
}

// StrictConfig returns a tuning for busy lobbies: slower to clear, faster to notice.
func StrictConfig() Config {
	return Config{
		Threshold: 15,
		Interval:  150 * time.Millisecond,
	}
}

// RelaxedConfig returns a tuning for slow hardware where inference is expensive.
func RelaxedConfig() Config {
	return Config{
		Threshold: 5,
		Interval:  400 * time.Millisecond,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.Threshold < 1 {
		return fmt.Errorf("admission: threshold must be at least 1, got %d", c.Threshold)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("admission: interval must be positive, got %v", c.Interval)
	}
	return nil
}
