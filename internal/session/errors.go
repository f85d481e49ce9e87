package session

import (
	"errors"
	"fmt"
)

// modelNotFoundError signals that the model file is missing or empty.
type modelNotFoundError struct{ path string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.path }

// IsModelNotFound reports whether err indicates a missing model file.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// initFailedError wraps the engine's initialization failure.
type initFailedError struct {
	path string
	err  error
}

func (e initFailedError) Error() string {
	return fmt.Sprintf("initialization failed for %s: %v", e.path, e.err)
}

func (e initFailedError) Unwrap() error { return e.err }

// IsInitializationFailed reports whether err came from engine initialization.
func IsInitializationFailed(err error) bool {
	var e initFailedError
	return errors.As(err, &e)
}

// busyError rejects an operation that conflicts with the current state.
type busyError struct{ state string }

func (e busyError) Error() string { return "session busy: " + e.state }

// IsBusy reports whether err indicates a load or generation is in flight.
func IsBusy(err error) bool {
	var e busyError
	return errors.As(err, &e)
}

// generationFailedError wraps the engine's inference failure.
type generationFailedError struct{ err error }

func (e generationFailedError) Error() string { return "generation failed: " + e.err.Error() }

func (e generationFailedError) Unwrap() error { return e.err }

// IsGenerationFailed reports whether err came from a failed inference call.
func IsGenerationFailed(err error) bool {
	var e generationFailedError
	return errors.As(err, &e)
}

type notLoadedError struct{}

func (notLoadedError) Error() string { return "no model loaded" }

// IsNotLoaded reports whether err indicates generate was called without a model.
func IsNotLoaded(err error) bool {
	var e notLoadedError
	return errors.As(err, &e)
}

type alreadyLoadedError struct{ path string }

func (e alreadyLoadedError) Error() string { return "model already loaded: " + e.path }

// IsAlreadyLoaded reports whether err indicates load was called while Ready.
func IsAlreadyLoaded(err error) bool {
	var e alreadyLoadedError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing runtime dependency (e.g., llama.cpp).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")
