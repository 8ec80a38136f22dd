package executor

import (
	"fmt"
	"time"
)

// AuthenticationError means the credential was missing, invalid, or
// rejected by the provider. The caller should trigger a re-auth flow.
type AuthenticationError struct {
	Provider string
	Reason   string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %s", e.Provider, e.Reason)
}

// RateLimitError means the provider returned 429.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by %s, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by %s", e.Provider)
}

// APIResponseError is any other non-2xx provider response.
type APIResponseError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIResponseError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Body)
}

// ExecutionError wraps transport-level failures (DNS, TLS, timeouts on
// the wire).
type ExecutionError struct {
	Provider string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("call to %s failed: %v", e.Provider, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// SafetyBlocked means the safety gate refused the action before any call
// was made.
type SafetyBlocked struct {
	Reason string
}

func (e *SafetyBlocked) Error() string {
	return fmt.Sprintf("blocked by safety policy: %s", e.Reason)
}

// TimeoutError means the overall execution budget ran out.
type TimeoutError struct {
	Provider string
	Budget   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call to %s exceeded %s budget", e.Provider, e.Budget)
}
