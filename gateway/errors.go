package gateway

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrKind classifies a failed gateway call.
type ErrKind string

const (
	// ErrKindTransport covers connection failures before a response arrived.
	ErrKindTransport ErrKind = "transport"

	// ErrKindTimeout covers requests that exceeded the client timeout.
	ErrKindTimeout ErrKind = "timeout"

	// ErrKindStatus covers responses with a non-2xx status code.
	ErrKindStatus ErrKind = "http_status"

	// ErrKindDecode covers responses whose body was not valid JSON.
	ErrKindDecode ErrKind = "decode"
)

// APIError describes a failed gateway call. Callers can branch on Kind to
// distinguish an unreachable gateway from a gateway that answered badly.
type APIError struct {
	Kind       ErrKind
	Op         string
	URL        string
	StatusCode int // set when Kind is ErrKindStatus
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Kind == ErrKindStatus:
		return fmt.Sprintf("%s: %s returned HTTP %d", e.Op, e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %s error", e.Op, e.URL, e.Kind)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// Timeout reports whether the call failed by exceeding the client timeout.
func (e *APIError) Timeout() bool { return e.Kind == ErrKindTimeout }

// classify separates timeouts from other transport failures.
func classify(err error) ErrKind {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return ErrKindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrKindTimeout
	}
	return ErrKindTransport
}
