package encoder

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFrameFormat is returned when a frame's dimensions do not
	// match the configured size or its pixel format is neither RGB24 nor BGRA.
	ErrInvalidFrameFormat = errors.New("encoder: invalid frame format")

	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("encoder: closed")

	// ErrInvalidSettings is returned by New when settings cannot be applied.
	ErrInvalidSettings = errors.New("encoder: invalid settings")
)

// BackendError wraps a failure reported by the codec, the pixel converter
// or the muxer.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("encoder: %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}
