package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/personamesh/config"
)

// GenerationError reports an exhausted generation stage. Attempts is the
// number of tries made before giving up; Err holds the last failure.
type GenerationError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Policy controls the retry loop of a generation stage. Backoff is the delay
// before the second attempt; it doubles for each further attempt.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// PolicyFromConfig converts a config retry block into a Policy.
func PolicyFromConfig(r config.Retry) Policy {
	return Policy{
		MaxAttempts: r.MaxAttempts,
		Backoff:     r.Backoff(),
	}
}

// withRetry runs fn up to p.MaxAttempts times, sleeping with doubling backoff
// between attempts. Every failure counts as an attempt regardless of cause.
// Returns the number of attempts made alongside the result.
func withRetry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if err := sleep(ctx, backoff); err != nil {
			return zero, attempt, err
		}
		backoff *= 2
	}
	return zero, attempts, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
