package domain

import "errors"

// Failure kinds surfaced by schedule computation. Every error returned by the
// core wraps exactly one of these, so callers can branch with errors.Is.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidSegment  = errors.New("invalid segment")
	ErrEmptyRoute      = errors.New("empty route")
	ErrDepartureInPast = errors.New("departure in past")
)

// Stable codes for transport layers.
const (
	KindInvalidInput    = "invalid_input"
	KindInvalidSegment  = "invalid_segment"
	KindEmptyRoute      = "empty_route"
	KindDepartureInPast = "departure_in_past"
	KindInternal        = "internal"
)

// ErrorKind maps an error to its stable code. Unknown errors are internal.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInvalidSegment):
		return KindInvalidSegment
	case errors.Is(err, ErrEmptyRoute):
		return KindEmptyRoute
	case errors.Is(err, ErrDepartureInPast):
		return KindDepartureInPast
	default:
		return KindInternal
	}
}

// IsCallerError reports whether err is a contract violation by the caller
// rather than a failure inside the service.
func IsCallerError(err error) bool {
	return ErrorKind(err) != KindInternal
}
