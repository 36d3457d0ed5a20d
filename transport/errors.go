package transport

import (
	"errors"
	"fmt"
	"time"
)

// Kind categorizes transport-level errors so callers can branch without
// matching on messages.
type Kind string

const (
	// KindNetwork covers transient connection failures that were retried
	// until the attempt budget ran out.
	KindNetwork Kind = "network"
	// KindTimeout covers deadline expiry and canceled contexts.
	KindTimeout Kind = "timeout"
	// KindTLS covers certificate validation and TLS protocol failures.
	// These are never retried.
	KindTLS Kind = "tls"
	// KindClient covers caller mistakes and defensive internal states.
	KindClient Kind = "client"
	// KindServer covers terminal server failures after retries exhausted.
	KindServer Kind = "server"
)

// Error is implemented by every transport error type.
type Error interface {
	error
	Kind() Kind
}

// NetworkError wraps a transient transport failure.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("network error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("network error: %s", e.Message)
}

// Kind returns KindNetwork.
func (e *NetworkError) Kind() Kind { return KindNetwork }

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError reports an expired deadline or canceled context.
type TimeoutError struct {
	Message string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("timeout error: %s (timeout: %v)", e.Message, e.Timeout)
	}
	return fmt.Sprintf("timeout error: %s", e.Message)
}

// Kind returns KindTimeout.
func (e *TimeoutError) Kind() Kind { return KindTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }

// TLSError reports a security-relevant TLS failure. The engine aborts
// immediately on these instead of retrying.
type TLSError struct {
	Message string
	Err     error
}

func (e *TLSError) Error() string {
	return fmt.Sprintf("tls error: %s: %v", e.Message, e.Err)
}

// Kind returns KindTLS.
func (e *TLSError) Kind() Kind { return KindTLS }

func (e *TLSError) Unwrap() error { return e.Err }

// ClientError reports a caller or usage mistake. Never retried.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error: %s", e.Message)
}

// Kind returns KindClient.
func (e *ClientError) Kind() Kind { return KindClient }

// ServerError is raised after the attempt budget is spent with only error
// responses seen. It carries the last observed status, reason and body.
type ServerError struct {
	Status int
	Reason string
	Body   []byte
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.Status, e.Reason)
}

// Kind returns KindServer.
func (e *ServerError) Kind() Kind { return KindServer }

// IsKind reports whether err carries the given transport error kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var terr Error
	if errors.As(err, &terr) {
		return terr.Kind() == kind
	}
	return false
}
