// Package session runs one check-in capture session: it owns the camera
// while the session is active, polls the detection adapter, gates the
// capture action on the stabilized admission state, and hands the still
// to the verification submitter.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-attend/pkg/admission"
	"github.com/teslashibe/go-attend/pkg/verify"
)

// State is the lifecycle state of the controller.
type State int

const (
	Idle State = iota
	Live
	Capturing
	AwaitingResult
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Live:
		return "live"
	case Capturing:
		return "capturing"
	case AwaitingResult:
		return "awaiting_result"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st := Idle; st <= Closed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("session: unknown state %q", text)
}

// Active reports whether a camera is held in this state.
func (s State) Active() bool {
	return s == Live || s == Capturing || s == AwaitingResult
}

var (
	// ErrCaptureBlocked is returned when capture is requested while more
	// than one face is in frame.
	ErrCaptureBlocked = errors.New("session: capture blocked, multiple faces in frame")

	// ErrNotLive is returned when capture is requested outside Live.
	ErrNotLive = errors.New("session: not live")

	// ErrCanceled is returned when the session was canceled or replaced
	// while an operation was in progress.
	ErrCanceled = errors.New("session: canceled")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session: controller closed")
)

// Status is a point-in-time view of the controller for UIs.
type Status struct {
	SessionID         string          `json:"session_id,omitempty"`
	State             State           `json:"state"`
	Admission         admission.State `json:"admission"`
	FaceCount         int             `json:"face_count"`
	ConsecutiveSingle int             `json:"consecutive_single"`
	Threshold         int             `json:"threshold"`
	CanCapture        bool            `json:"can_capture"`
	ModelReady        bool            `json:"model_ready"`
	Warning           string          `json:"warning,omitempty"`
	Error             string          `json:"error,omitempty"`
	LastOutcome       *verify.Outcome `json:"last_outcome,omitempty"`
	Refreshes         uint64          `json:"refreshes"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Config holds session settings.
type Config struct {
	Admission admission.Config

	// StillTimeout bounds taking the still on capture.
	StillTimeout time.Duration

	// RecheckStill runs detection on the still before submitting it.
	RecheckStill bool
}

// DefaultConfig returns the stock session settings.
func DefaultConfig() Config {
	return Config{
		Admission:    admission.DefaultConfig(),
		StillTimeout: 5 * time.Second,
		RecheckStill: true,
	}
}
