package dynamodb

import "fmt"

// ResponseError is the generic decoded error response. Data holds the raw
// JSON error document including the __type discriminator.
type ResponseError struct {
	Status int
	Reason string
	Data   map[string]any
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Reason, e.ErrorType())
}

// ErrorType returns the service's __type discriminator, when present.
func (e *ResponseError) ErrorType() string {
	if t, ok := e.Data["__type"].(string); ok {
		return t
	}
	return ""
}

// Message returns the service's error message, when present.
func (e *ResponseError) Message() string {
	for _, key := range []string{"message", "Message"} {
		if m, ok := e.Data[key].(string); ok {
			return m
		}
	}
	return ""
}

// ThroughputExceededError is raised when the final allowed attempt still
// reports exceeded provisioned throughput.
type ThroughputExceededError struct {
	ResponseError
}

func (e *ThroughputExceededError) Error() string {
	return fmt.Sprintf("provisioned throughput exceeded: %d %s", e.Status, e.Reason)
}

// ConditionalCheckFailedError is raised when a conditional write's expected
// clause does not hold. Never retried.
type ConditionalCheckFailedError struct {
	ResponseError
}

func (e *ConditionalCheckFailedError) Error() string {
	return fmt.Sprintf("conditional check failed: %d %s", e.Status, e.Reason)
}

// ValidationError is raised when the service rejects the request payload.
// Never retried.
type ValidationError struct {
	ResponseError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %d %s: %s", e.Status, e.Reason, e.Message())
}

// ExpiredTokenError is raised when the session token has expired and
// credential renewal did not produce a fresh one.
type ExpiredTokenError struct {
	ResponseError
	Err error
}

func (e *ExpiredTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session token expired and renewal failed: %v", e.Err)
	}
	return fmt.Sprintf("session token expired: %d %s", e.Status, e.Reason)
}

func (e *ExpiredTokenError) Unwrap() error { return e.Err }

// KeyNotFoundError is raised by GetItem when the response carries no Item.
type KeyNotFoundError struct {
	TableName string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key does not exist in table %q", e.TableName)
}
