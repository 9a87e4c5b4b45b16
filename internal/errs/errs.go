// Package errs defines the small set of error kinds shared across the
// core: invalid arguments, missing registrations, duplicate registrations,
// and exhausted fixed-size tables. It is the idiomatic-Go rendition of the
// teacher's Err_t convention (biscuit/src/defs), traded for sentinel errors
// checked with errors.Is instead of a raw negative-int code.
package errs

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Kind classifies the error so callers can react programmatically without
// string matching.
type Kind int

const (
	// InvalidArg marks a request with a malformed argument: zero size,
	// an offset+length past the end of a region, a zero barrier count.
	InvalidArg Kind = iota
	// NotFound marks a request against an identity that has no
	// registered TLSArea or TCB.
	NotFound
	// Exists marks tls_create/tls_clone racing a pre-existing
	// registration for the calling identity.
	Exists
	// Exhausted marks a fixed-size table (registry, TCB ring) that is
	// full.
	Exhausted
)

func (k Kind) String() string {
	switch k {
	case InvalidArg:
		return "invalid argument"
	case NotFound:
		return "not found"
	case Exists:
		return "already exists"
	case Exhausted:
		return "table exhausted"
	default:
		return "unknown error kind"
	}
}

// kindError pairs a Kind with a message so errors.Is(err, ErrNotFound)
// works via the Is method below, while %v still prints something useful.
type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool {
	t, ok := target.(*kindError)
	return ok && t.kind == e.kind
}

// Sentinel values for use with errors.Is.
var (
	ErrInvalidArg = &kindError{kind: InvalidArg, msg: "invalid argument"}
	ErrNotFound   = &kindError{kind: NotFound, msg: "not found"}
	ErrExists     = &kindError{kind: Exists, msg: "already exists"}
	ErrExhausted  = &kindError{kind: Exhausted, msg: "table exhausted"}
)

// New wraps one of the sentinel kinds with a caller-supplied detail string,
// preserving errors.Is(err, ErrXxx) behavior via kindError.Is.
func New(kind Kind, format string, args ...any) error {
	var sentinel *kindError
	switch kind {
	case InvalidArg:
		sentinel = ErrInvalidArg
	case NotFound:
		sentinel = ErrNotFound
	case Exists:
		sentinel = ErrExists
	case Exhausted:
		sentinel = ErrExhausted
	default:
		sentinel = &kindError{kind: kind, msg: "error"}
	}
	detail := fmt.Sprintf(format, args...)
	return &kindError{kind: sentinel.kind, msg: fmt.Sprintf("%s: %s", sentinel.msg, detail)}
}

// Is reports whether err carries kind, looking through wrapping via
// errors.Is semantics.
func Is(err error, kind Kind) bool {
	switch kind {
	case InvalidArg:
		return errors.Is(err, ErrInvalidArg)
	case NotFound:
		return errors.Is(err, ErrNotFound)
	case Exists:
		return errors.Is(err, ErrExists)
	case Exhausted:
		return errors.Is(err, ErrExhausted)
	}
	return false
}

// Fatal reports an unrecoverable host failure and aborts the process.
// There is no recovering from it, so it does not return an error value.
func Fatal(format string, args ...any) {
	logrus.Fatalf(format, args...)
}
