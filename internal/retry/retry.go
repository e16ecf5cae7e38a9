// Package retry wraps a single dispatch attempt with a bounded
// exponential-backoff policy. Transient failures are retried with jitter;
// fatal failures surface immediately.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/Technolog796/DeathMath/internal/llm"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// Policy controls the attempt loop. The zero value gets defaults on use.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// jitter and sleep are injectable for tests.
	jitter func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

// New returns a Policy with explicit bounds. Non-positive arguments fall
// back to defaults.
func New(maxAttempts int, baseDelay, maxDelay time.Duration) Policy {
	p := Policy{MaxAttempts: maxAttempts, BaseDelay: baseDelay, MaxDelay: maxDelay}
	p.normalize()
	return p
}

func (p *Policy) normalize() {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.jitter == nil {
		p.jitter = rand.Float64
	}
	if p.sleep == nil {
		p.sleep = sleepWithContext
	}
}

// Do runs fn until it succeeds, fails fatally, or the attempt cap is
// reached. It returns the number of attempts made and the last error.
// Context cancellation stops the loop immediately, including mid-sleep.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	p.normalize()
	if ctx == nil {
		return 0, errors.New("retry: nil context")
	}
	if fn == nil {
		return 0, errors.New("retry: nil attempt func")
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return attempt, lastErr
			}
			return attempt, err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt + 1, nil
		}
		if !llm.Transient(lastErr) {
			return attempt + 1, lastErr
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		if err := p.sleep(ctx, p.backoff(attempt)); err != nil {
			return attempt + 1, lastErr
		}
	}
	return p.MaxAttempts, lastErr
}

// backoff doubles the base delay each attempt, caps it, and adds up to 50%
// random jitter so parallel workers do not retry in lockstep.
func (p Policy) backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d + time.Duration(p.jitter()*0.5*float64(d))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
