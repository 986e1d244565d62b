// Package retry decorates fallible operations with bounded retries and a
// caller-supplied fallback value, so call sites can treat degraded operation
// uniformly instead of handling errors everywhere.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/mohammad-safakhou/insight/config"
)

// Policy controls attempt count, backoff shape and error classification.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         bool
	// Retryable decides whether an error deserves another attempt.
	// A nil Retryable retries everything.
	Retryable func(error) bool
}

// FromConfig builds a Policy from the shared retry configuration.
func FromConfig(cfg config.RetryConfig, retryable func(error) bool) Policy {
	p := Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Jitter:         cfg.Jitter,
		Retryable:      retryable,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 300 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 8 * time.Second
	}
	return p
}

// Result is the outcome of a retried operation. When OK is false, Value holds
// the caller's fallback and Err the last error observed.
type Result[T any] struct {
	Value T
	OK    bool
	Err   error
}

// Do runs op up to p.MaxAttempts times with exponential backoff between
// attempts. On success it returns the value; on a non-retryable error or
// exhaustion it returns fallback with OK=false. Do holds no shared state and
// is safe for concurrent use.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), fallback T) Result[T] {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.backoff(attempt)):
			case <-ctx.Done():
				return Result[T]{Value: fallback, Err: ctx.Err()}
			}
		}

		v, err := op(ctx)
		if err == nil {
			return Result[T]{Value: v, OK: true}
		}
		lastErr = err
		if p.Retryable != nil && !p.Retryable(err) {
			break
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}
	return Result[T]{Value: fallback, Err: lastErr}
}

func (p Policy) backoff(attempt int) time.Duration {
	base := p.InitialBackoff
	if base <= 0 {
		base = 300 * time.Millisecond
	}
	d := base << uint(attempt-1)
	max := p.MaxBackoff
	if max <= 0 {
		max = 8 * time.Second
	}
	if d > max {
		d = max
	}
	if p.Jitter {
		d += time.Duration(rand.Int63n(int64(base)))
	}
	return d
}
