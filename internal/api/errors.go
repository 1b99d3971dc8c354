package api

import (
	"errors"
	"fmt"
)

// Kind classifies request failures.
type Kind int

const (
	// KindValidation is a client-side constraint violation. The request
	// never reaches the network.
	KindValidation Kind = iota + 1

	// KindAuth is a 401 from the server, or an expired session after a
	// failed credential refresh.
	KindAuth

	// KindNotFound is a 404: the requested resource does not exist.
	KindNotFound

	// KindTransport is a connectivity or timeout failure.
	KindTransport

	// KindServer is any other non-2xx response.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not found"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	}
	return "unknown"
}

// Error is the settled outcome of a failed operation. Every store
// operation resolves to either a result or an *Error; nothing throws
// past its own boundary.
type Error struct {
	Kind   Kind
	Status int    // HTTP status, when a response was received
	Detail string // server-provided detail, or a client-side message
	Err    error  // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewValidation builds a client-side validation error.
func NewValidation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}

// IsValidation reports whether err is a client-side validation failure.
func IsValidation(err error) bool { return IsKind(err, KindValidation) }

// IsAuth reports whether err is an authorization failure.
func IsAuth(err error) bool { return IsKind(err, KindAuth) }

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsTransport reports whether err is a network-level failure.
func IsTransport(err error) bool { return IsKind(err, KindTransport) }
