package negdi

import (
	"errors"
	"fmt"
)

// ErrorKind separates transport failures from malformed replies.
type ErrorKind string

const (
	KindNetwork  ErrorKind = "network"
	KindProtocol ErrorKind = "protocol"
)

// GatewayError is returned by every Client call that did not yield a usable reply.
type GatewayError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("negdi %s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx gateway reply.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("negdi api status %d: %s", e.StatusCode, e.Body)
}

// IsNetwork reports whether err is a gateway transport failure, timeouts included.
func IsNetwork(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == KindNetwork
}

// IsProtocol reports whether the gateway answered with something unusable.
func IsProtocol(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Kind == KindProtocol
}
