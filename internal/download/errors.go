package download

import (
	"errors"
	"fmt"
)

// Kind classifies a download failure so callers can give different retry guidance.
type Kind string

const (
	KindBadURL            Kind = "bad_url"
	KindNotFound          Kind = "not_found"
	KindNetwork           Kind = "network"
	KindDiskFull          Kind = "disk_full"
	KindInterrupted       Kind = "interrupted"
	KindIOFailure         Kind = "io_failure"
	KindAlreadyInProgress Kind = "already_in_progress"
	KindCancelled         Kind = "cancelled"
	KindUnknownVariant    Kind = "unknown_variant"
)

// downloadError carries the classified kind and the underlying cause.
type downloadError struct {
	kind    Kind
	variant string
	err     error
}

func (e downloadError) Error() string {
	msg := fmt.Sprintf("download %s", e.kind)
	if e.variant != "" {
		msg += " (" + e.variant + ")"
	}
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

func (e downloadError) Unwrap() error { return e.err }

func newError(kind Kind, variant string, err error) error {
	return downloadError{kind: kind, variant: variant, err: err}
}

// KindOf returns the classified kind of err, or "" when err is not a download error.
func KindOf(err error) Kind {
	var de downloadError
	if errors.As(err, &de) {
		return de.kind
	}
	return ""
}

// IsAlreadyInProgress reports whether a start was rejected because another job is active.
func IsAlreadyInProgress(err error) bool { return KindOf(err) == KindAlreadyInProgress }

// IsCancelled reports whether the job ended through caller cancellation.
func IsCancelled(err error) bool { return KindOf(err) == KindCancelled }

// IsNotFound reports whether the remote resource (or a catalog variant) was missing.
func IsNotFound(err error) bool {
	k := KindOf(err)
	return k == KindNotFound || k == KindUnknownVariant
}

// IsBadURL reports whether the variant URL was malformed or unsupported.
func IsBadURL(err error) bool { return KindOf(err) == KindBadURL }
