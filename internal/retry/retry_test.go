package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Technolog796/DeathMath/internal/llm"
)

func testPolicy(sleeps *[]time.Duration) Policy {
	p := New(3, time.Second, 30*time.Second)
	p.jitter = func() float64 { return 0 }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return ctx.Err()
	}
	return p
}

func transientErr(msg string) error {
	return &llm.EndpointError{Kind: llm.KindTransient, Message: msg}
}

func fatalErr(msg string) error {
	return &llm.EndpointError{Kind: llm.KindFatal, Message: msg}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	p := testPolicy(&sleeps)

	calls := 0
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transientErr("rate limit exceeded")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %v, want 2 entries", sleeps)
	}
	if sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Fatalf("backoff schedule = %v, want [1s 2s]", sleeps)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	p := testPolicy(nil)
	calls := 0
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return transientErr("server overloaded")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 || calls != 3 {
		t.Fatalf("attempts = %d, calls = %d, want 3 each", attempts, calls)
	}
	var ee *llm.EndpointError
	if !errors.As(err, &ee) || ee.Kind != llm.KindTransient {
		t.Fatalf("err = %v, want last transient error", err)
	}
}

func TestDo_FatalStopsImmediately(t *testing.T) {
	t.Parallel()

	var sleeps []time.Duration
	p := testPolicy(&sleeps)

	calls := 0
	attempts, err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatalErr("invalid api key")
	})
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if attempts != 1 || calls != 1 {
		t.Fatalf("attempts = %d, calls = %d, want 1 each", attempts, calls)
	}
	if len(sleeps) != 0 {
		t.Fatalf("slept %v after a fatal error", sleeps)
	}
}

func TestDo_CancelledDuringSleep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	p := New(5, time.Second, 30*time.Second)
	p.jitter = func() float64 { return 0 }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	attempts, err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return transientErr("timeout")
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls != 1 || attempts != 1 {
		t.Fatalf("attempts = %d, calls = %d, want 1 each", attempts, calls)
	}
}

func TestDo_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testPolicy(nil)
	attempts, err := p.Do(ctx, func(ctx context.Context) error {
		t.Fatal("attempt func ran on cancelled context")
		return nil
	})
	if attempts != 0 {
		t.Fatalf("attempts = %d, want 0", attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBackoff_Caps(t *testing.T) {
	t.Parallel()

	p := New(10, time.Second, 4*time.Second)
	p.jitter = func() float64 { return 0 }

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second}
	for attempt, w := range want {
		if got := p.backoff(attempt); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", attempt, got, w)
		}
	}
}

func TestBackoff_Jitter(t *testing.T) {
	t.Parallel()

	p := New(3, time.Second, 30*time.Second)
	p.jitter = func() float64 { return 1 }

	if got := p.backoff(0); got != 1500*time.Millisecond {
		t.Fatalf("backoff(0) with full jitter = %v, want 1.5s", got)
	}
}
