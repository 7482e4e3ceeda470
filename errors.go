package snapshot

import (
	"errors"
	"fmt"
)

// Sentinel errors for snapshot operations.
// These errors enable reliable error classification using errors.Is().
var (
	// ErrInvalidArgument indicates a malformed buffer, crop rectangle or setting.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotSupported is returned when an optional operation is not supported.
	ErrNotSupported = errors.New("operation not supported")

	// ErrSourceClosed indicates a frame source was closed while reading.
	ErrSourceClosed = errors.New("source closed")

	// ErrTrackEnded indicates the track ended before a frame arrived.
	ErrTrackEnded = errors.New("track ended")

	// ErrCaptureCanceled indicates a capture was abandoned before a frame arrived.
	ErrCaptureCanceled = errors.New("capture canceled")
)

// ErrorKind classifies a failed capture for the caller.
type ErrorKind int

const (
	// ErrorKindIO covers directory creation, file creation and write failures.
	ErrorKindIO ErrorKind = iota
	// ErrorKindInvalidArgument covers encoder argument errors.
	ErrorKindInvalidArgument
	// ErrorKindCanceled is reported when no frame was captured.
	ErrorKindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindIO:
		return "IOException"
	case ErrorKindInvalidArgument:
		return "IllegalArgumentException"
	case ErrorKindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// CaptureError is the failure signal delivered to a capture's result callback.
type CaptureError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// classifyError wraps err into a CaptureError.
func classifyError(err error) *CaptureError {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce
	}
	kind := ErrorKindIO
	switch {
	case errors.Is(err, ErrInvalidArgument):
		kind = ErrorKindInvalidArgument
	case errors.Is(err, ErrCaptureCanceled), errors.Is(err, ErrTrackEnded):
		kind = ErrorKindCanceled
	}
	return &CaptureError{Kind: kind, Message: err.Error(), Err: err}
}

// ErrorKindOf returns the kind of a capture error, or false if err is not one.
func ErrorKindOf(err error) (ErrorKind, bool) {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}
