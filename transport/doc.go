// Package transport implements the request execution engine: an immutable
// request descriptor with a signing-aware authorization step, and a bounded
// retry loop that coordinates authorization, network send, response
// classification and exponential backoff.
//
// Retry semantics
//   - Each Do call performs at most maxRetries+1 attempts.
//   - The request is re-authorized on every attempt; signatures are
//     wall-clock-bound and never cached.
//   - Transient transport failures (connection refused/lost, timeouts) and
//     500/502/503/504 responses retry with randomized exponential backoff.
//   - Certificate validation and TLS protocol failures abort immediately.
//   - All other responses, 4xx included, are terminal successes; status
//     semantics belong to the protocol layer above.
//   - A per-call Classifier can replace default handling with its own retry
//     decision or a typed fatal error.
//
// The engine sleeps only on confirmed retry decisions. Attempt state is
// local to each Do invocation, so executors are safe for concurrent use over
// the shared keep-alive connection pool.
package transport
