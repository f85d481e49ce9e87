package assets

import "errors"

// notFoundError signals that a variant has no materialized file.
type notFoundError struct{ path string }

func (e notFoundError) Error() string { return "asset not found: " + e.path }

// IsNotFound reports whether err indicates a missing local asset.
func IsNotFound(err error) bool {
	var nf notFoundError
	return errors.As(err, &nf)
}

// ioFailureError wraps filesystem failures (disk full, permission, interrupted write).
type ioFailureError struct {
	op  string
	err error
}

func (e ioFailureError) Error() string { return "asset " + e.op + ": " + e.err.Error() }

func (e ioFailureError) Unwrap() error { return e.err }

// IsIOFailure reports whether err is a filesystem failure from the store.
func IsIOFailure(err error) bool {
	var io ioFailureError
	return errors.As(err, &io)
}
