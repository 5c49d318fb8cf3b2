// ABOUTME: Typed transport failures raised by the upstream client
// ABOUTME: Carries status code, raw body, and failing URL for diagnostics

package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindStatus is a non-2xx response from the upstream service.
	KindStatus Kind = iota
	// KindTimeout means the per-call deadline expired.
	KindTimeout
	// KindConnection covers dial, TLS, and read failures.
	KindConnection
	// KindDecode means a 2xx response body was not valid JSON.
	KindDecode
	// KindCircuitOpen means the breaker rejected the call without reaching upstream.
	KindCircuitOpen
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindDecode:
		return "decode"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is wrapped by TransportErrors of KindCircuitOpen.
var ErrCircuitOpen = errors.New("upstream circuit open")

// TransportError is returned for every failed upstream call. Status and Body
// are only set for KindStatus.
type TransportError struct {
	Kind   Kind
	Method string
	URL    string
	Status int
	Body   string
	Err    error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("%s %s: upstream returned %d %s: %s", e.Method, e.URL, e.Status, http.StatusText(e.Status), e.Body)
	case KindTimeout:
		return fmt.Sprintf("%s %s: upstream timed out", e.Method, e.URL)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Kind)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AsTransportError extracts a *TransportError from err's chain.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsConflict reports whether err is an upstream 409 response.
func IsConflict(err error) bool {
	te, ok := AsTransportError(err)
	return ok && te.Kind == KindStatus && te.Status == http.StatusConflict
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if te, ok := AsTransportError(err); ok && te.Kind == KindStatus {
		return te.Status
	}
	return 0
}

// URLOf returns the URL of the failing call carried by err, or "".
func URLOf(err error) string {
	if te, ok := AsTransportError(err); ok {
		return te.URL
	}
	return ""
}
