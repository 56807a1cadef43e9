package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEnvelope is returned when a decrypted document matches
	// neither the request nor the message envelope shape.
	ErrMalformedEnvelope = errors.New(`envelope matches neither request nor message shape`)
	// ErrPeerNotFound is returned by lookup when a public key cannot be
	// resolved to a reachable endpoint.
	ErrPeerNotFound = errors.New(`peer not found`)
	// ErrAwaitTimeout is returned when the deadline of a reply-await loop
	// expires before any response arrives.
	ErrAwaitTimeout = errors.New(`awaiting reply timed out`)
)

// TransportError wraps a network or I/O failure of the underlying
// transport session. The core never retries these.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf(`transport %s failed - %v`, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError wraps a decrypt or sender-verification failure of a single
// inbound item. It is fatal to that item only.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf(`authentication failed - %s`, e.Reason)
	}
	return fmt.Sprintf(`authentication failed - %s - %v`, e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConversionError wraps a failure to convert a payload document into
// the statically expected type for its slot.
type ConversionError struct {
	Target string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf(`converting payload to %s failed - %v`, e.Target, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ApplicationError wraps an error returned by a consumer-supplied
// handler. No failure response is sent to the requesting peer; the
// error surfaces locally only.
type ApplicationError struct {
	Err error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf(`application handler failed - %v`, e.Err)
}

func (e *ApplicationError) Unwrap() error { return e.Err }
