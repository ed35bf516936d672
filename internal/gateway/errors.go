package gateway

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated means no usable credential existed and none could be
// obtained: either the cookie jar was empty, or the single refresh attempt
// failed. The target endpoint was never called.
var ErrUnauthenticated = errors.New("unauthenticated: no usable credential")

// TransportError wraps a network-level failure talking to the backend.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response from the backend, passed through
// unmodified. The gateway itself never inspects response bodies; the typed
// client raises this when decoding replies.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
