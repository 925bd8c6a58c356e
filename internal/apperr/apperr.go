// Package apperr defines the failure taxonomy shared by every stage of a
// publish attempt. Components translate their own failures (transport
// errors, upstream status codes, malformed payloads) into one of the kinds
// below at their boundary, so the interaction layer can log specifics and
// show the user a single generic message.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a coarse classification of a failed publish attempt.
type Kind string

const (
	// KindNone is returned by KindOf for nil or unclassified errors.
	KindNone Kind = ""
	// ConfigMissing: a required credential or config value is absent.
	ConfigMissing Kind = "config_missing"
	// DataUnavailable: the astronomical provider failed or returned an
	// incomplete body set.
	DataUnavailable Kind = "data_unavailable"
	// GenerationFailed: the text generation provider failed or returned
	// an empty completion.
	GenerationFailed Kind = "generation_failed"
	// DeliveryFailed: the messaging platform rejected the channel send,
	// including a stale media identifier.
	DeliveryFailed Kind = "delivery_failed"
	// StoreCorrupt: the identifier snapshot could not be read. Never
	// escalated; the store loads empty instead.
	StoreCorrupt Kind = "store_corrupt"
)

// ErrMissingConfig is the cause attached to errors raised because a
// credential was not configured.
var ErrMissingConfig = errors.New("missing configuration")

// Error wraps an underlying error with the operation that failed and its kind.
// Status carries the upstream HTTP status when there was one.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		base += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		base += ": " + e.Err.Error()
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates an Error with a formatted message as its cause.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind and operation to err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithStatus is Wrap for failures that came with an upstream HTTP status.
func WithStatus(kind Kind, op string, status int, err error) error {
	return &Error{Kind: kind, Op: op, Status: status, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// genericFailure is the only failure text end users ever see.
const genericFailure = "Произошла ошибка при генерации гороскопа. Попробуйте позже."

// UserMessage returns the user-facing text for a failed attempt. It never
// includes error details: provider payloads and credentials stay in logs.
func UserMessage(err error) string {
	return genericFailure
}
