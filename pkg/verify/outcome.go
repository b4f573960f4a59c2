// Package verify submits a single captured still to the attendance
// backend and turns the response into a typed Outcome.
package verify

import (
	"errors"
	"fmt"
)

// Kind classifies an Outcome.
type Kind string

const (
	KindSuccess        Kind = "success"
	KindMultiFace      Kind = "multi_face"
	KindNoFace         Kind = "no_face"
	KindRemoteRejected Kind = "remote_rejected"
	KindSessionExpired Kind = "session_expired"
	KindTransport      Kind = "transport"
	KindCaptureFailed  Kind = "capture_failed"
)

// User-facing messages.
const (
	MsgSuccess        = "Attendance recorded successfully!"
	MsgNoFace         = "No face detected in the image. Please try again."
	MsgSessionExpired = "Session expired. Please log in again."
	MsgRejected       = "Attendance could not be recorded."
	MsgTransport      = "Something went wrong while processing the image. Please try again later."
	MsgTimeout        = "The attendance server did not respond in time. Please try again."
	MsgCaptureFailed  = "Could not capture an image from the camera. Please try again."
)

// MultiFaceMessage returns the message shown when count faces are in frame.
func MultiFaceMessage(count int) string {
	if count < 2 {
		return "Multiple faces detected. Please make sure only your face is in the frame."
	}
	return fmt.Sprintf("Detected %d faces in the image. Please make sure only your face is in the frame.", count)
}

// Outcome is the terminal result of one capture attempt.
type Outcome struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
	Kind      Kind   `json:"kind"`
	FaceCount int    `json:"face_count,omitempty"`

	// Confidence is the detector's score for the primary face of the
	// submitted still, when the still was rechecked.
	Confidence float64 `json:"confidence,omitempty"`

	// Err is the underlying cause, for logs only.
	Err error `json:"-"`
}

// Sentinel errors carried in Outcome.Err.
var (
	ErrMultiFace = errors.New("verify: multiple faces in frame")
	ErrNoFace    = errors.New("verify: no face in frame")
	ErrNoToken   = errors.New("verify: session expired")
)

// RemoteError is a non-2xx response from the attendance endpoint.
type RemoteError struct {
	StatusCode int
	Detail     string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("verify: remote rejected (%d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("verify: remote rejected (%d)", e.StatusCode)
}

// IsUnauthorized returns true if the token was rejected (HTTP 401/403).
func (e *RemoteError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

func success(timestamp string) Outcome {
	return Outcome{Success: true, Message: MsgSuccess, Timestamp: timestamp, Kind: KindSuccess, FaceCount: 1}
}

func failure(kind Kind, msg string, err error) Outcome {
	return Outcome{Success: false, Message: msg, Kind: kind, Err: err}
}

// MultiFace returns the outcome for a capture blocked by a crowded frame.
func MultiFace(count int) Outcome {
	o := failure(KindMultiFace, MultiFaceMessage(count), ErrMultiFace)
	o.FaceCount = count
	return o
}

// NoFace returns the outcome for a capture with nobody in frame.
func NoFace() Outcome {
	return failure(KindNoFace, MsgNoFace, ErrNoFace)
}

// CaptureFailed returns the outcome for a still that could not be taken.
func CaptureFailed(err error) Outcome {
	return failure(KindCaptureFailed, MsgCaptureFailed, err)
}
