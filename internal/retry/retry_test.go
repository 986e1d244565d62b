package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int, retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Retryable:      retryable,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()
	calls := 0
	res := Do(context.Background(), fastPolicy(3, nil), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}, -1)
	if !res.OK || res.Value != 42 {
		t.Fatalf("expected success with 42, got %+v", res)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	calls := 0
	res := Do(context.Background(), fastPolicy(3, nil), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	}, "fallback")
	if !res.OK || res.Value != "ok" {
		t.Fatalf("expected success after retries, got %+v", res)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoReturnsFallbackOnExhaustion(t *testing.T) {
	t.Parallel()
	calls := 0
	boom := errors.New("boom")
	res := Do(context.Background(), fastPolicy(4, nil), func(ctx context.Context) (string, error) {
		calls++
		return "", boom
	}, "fallback")
	if res.OK {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Value != "fallback" {
		t.Fatalf("expected fallback value, got %q", res.Value)
	}
	if !errors.Is(res.Err, boom) {
		t.Fatalf("expected last error to be preserved, got %v", res.Err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestDoStopsOnFatalError(t *testing.T) {
	t.Parallel()
	fatal := errors.New("fatal")
	calls := 0
	res := Do(context.Background(), fastPolicy(5, func(err error) bool { return !errors.Is(err, fatal) }),
		func(ctx context.Context) (int, error) {
			calls++
			return 0, fatal
		}, 7)
	if res.OK || res.Value != 7 {
		t.Fatalf("expected fallback 7, got %+v", res)
	}
	if calls != 1 {
		t.Fatalf("fatal error must not be retried, got %d calls", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := Do(ctx, Policy{MaxAttempts: 3, InitialBackoff: time.Hour}, func(ctx context.Context) (int, error) {
		return 0, errors.New("transient")
	}, 9)
	if res.OK {
		t.Fatalf("expected failure under cancelled context")
	}
	if res.Value != 9 {
		t.Fatalf("expected fallback, got %d", res.Value)
	}
}

func TestDoIsReentrant(t *testing.T) {
	t.Parallel()
	p := fastPolicy(2, nil)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			Do(context.Background(), p, func(ctx context.Context) (int, error) {
				return 1, nil
			}, 0)
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
