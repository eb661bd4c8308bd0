package captioner

import (
	"errors"
	"fmt"
)

// inferenceError wraps any failure raised by the backend during generation.
// Its message is the backend's own text so callers can surface it verbatim.
type inferenceError struct{ err error }

func (e inferenceError) Error() string { return e.err.Error() }

func (e inferenceError) Unwrap() error { return e.err }

// IsInference reports whether err came from a failed inference call.
func IsInference(err error) bool {
	var ie inferenceError
	return errors.As(err, &ie)
}

// dependencyUnavailableError signals a runtime that is missing from this build
// or not loaded.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing or unloaded runtime.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}

type unknownBackendError struct{ name string }

func (e unknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend %q (want %s or %s)", e.name, BackendONNX, BackendRemote)
}

// errNoOutput is returned when a backend produced an empty result sequence.
var errNoOutput = errors.New("model returned no output")
