package llm

import "fmt"

// TransportError covers network failures and non-2xx responses from the
// completion service other than rate limiting. Transport errors are retryable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("llm transport: %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError is returned on HTTP 429. Retryable with backoff.
type RateLimitError struct {
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("llm rate limited (status %d)", e.StatusCode)
}

// MalformedResponseError is returned when the completion succeeded at the
// transport level but its content could not be decoded into the expected
// JSON shape. Not retryable: the model already answered, retrying the same
// prompt is the caller's decision, not the client's.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("llm malformed response: %v", e.Err)
}
func (e *MalformedResponseError) Unwrap() error { return e.Err }

// AuthError is returned on HTTP 401/403. Fatal, never retried.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string { return fmt.Sprintf("llm auth failed (status %d)", e.StatusCode) }
