package session

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when an operation arrives while a capture or an
	// upload is in progress. The session is left untouched.
	ErrBusy = errors.New("session busy")

	ErrEmptyClip        = errors.New("recording is empty")
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// Kind classifies a failure.
type Kind int

const (
	PermissionDenied Kind = iota + 1
	CaptureFailure
	TransportFailure
	ContractViolation
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case CaptureFailure:
		return "capture_failure"
	case TransportFailure:
		return "transport_failure"
	case ContractViolation:
		return "contract_violation"
	default:
		return "unknown"
	}
}

// Failure is the diagnostic stored while the session is Failed.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// KindOf returns the failure kind carried by err, or 0.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}
