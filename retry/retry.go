// Package retry provides the backoff policies used by the request execution
// engine: a randomized binary exponential curve for general transient
// failures and a much tighter deterministic curve reserved for
// provisioned-throughput retries. The two curves are distinct policy values
// and are not interchangeable.
package retry

import (
	crand "crypto/rand"
	"math/big"
	"time"
)

// DefaultMaxDelay caps any computed backoff delay.
const DefaultMaxDelay = 60 * time.Second

// maxShift bounds the exponent to avoid overflow when computing 2^attempt.
const maxShift = 20

// Decision instructs the execution loop to continue retrying. It is produced
// by a response classifier and consumed in place of the engine's default
// handling for the current attempt.
type Decision struct {
	// Reason is logged before sleeping.
	Reason string
	// Attempt is the attempt index the loop continues with. Classifiers may
	// step it forward (throughput retries) or jump it toward the budget end
	// (session renewal). The loop never moves the index backward.
	Attempt int
	// Delay is slept before the next attempt.
	Delay time.Duration
}

// Policy computes randomized binary exponential backoff delays,
// desynchronizing concurrent clients through full jitter.
type Policy struct {
	maxDelay time.Duration
}

// NewPolicy returns a Policy capped at maxDelay. Non-positive values fall
// back to DefaultMaxDelay.
func NewPolicy(maxDelay time.Duration) Policy {
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return Policy{maxDelay: maxDelay}
}

// Delay returns a random duration in [0, min(2^attempt seconds, maxDelay)).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxShift {
		attempt = maxShift
	}
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > p.maxDelay {
		d = p.maxDelay
	}
	return jitter(d)
}

// MaxDelay reports the configured cap.
func (p Policy) MaxDelay() time.Duration {
	return p.maxDelay
}

// ThroughputPolicy computes the tight deterministic curve used when the
// service reports provisioned throughput exceeded:
// delay(i) = min(0.05 * 2^i, maxDelay), with delay(0) = 0.
type ThroughputPolicy struct {
	maxDelay time.Duration
}

// NewThroughputPolicy returns a ThroughputPolicy capped at maxDelay.
func NewThroughputPolicy(maxDelay time.Duration) ThroughputPolicy {
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return ThroughputPolicy{maxDelay: maxDelay}
}

// Delay returns the deterministic throughput backoff for the given attempt.
func (p ThroughputPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > maxShift {
		attempt = maxShift
	}
	d := time.Duration(1<<uint(attempt)) * 50 * time.Millisecond
	if d > p.maxDelay {
		d = p.maxDelay
	}
	return d
}

// jitter returns a random duration in [0, d). On RNG failure the full delay
// is used.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	n, err := crand.Int(crand.Reader, big.NewInt(int64(d)))
	if err != nil {
		return d
	}
	return time.Duration(n.Int64())
}
