package detection

import (
	"errors"
	"fmt"
)

var (
	// ErrModelLoad is returned when the detection backend fails to initialize.
	ErrModelLoad = errors.New("detection: model load failed")

	// ErrNotReady is returned when detection is requested before EnsureReady succeeded.
	ErrNotReady = errors.New("detection: model not loaded")
)

// LoadError wraps the backend error that prevented the model from loading.
type LoadError struct {
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("%v: %v", ErrModelLoad, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is matches ErrModelLoad.
func (e *LoadError) Is(target error) bool {
	return target == ErrModelLoad
}
