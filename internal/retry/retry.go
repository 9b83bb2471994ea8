// Package retry runs an operation again while it fails with a connectivity error.
// The stores never retry on their own; callers that want a policy use this.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	apperrors "github.com/defi-common/internal/errors"
	"github.com/defi-common/internal/logging"
)

// Policy configures backoff between attempts
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy waits 1s, 2s, 4s, 8s between five attempts
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Func is one attempt, numbered from 1
type Func func(ctx context.Context, attempt int) error

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done. Only apperrors.IsRetryable errors are retried.
func Do(ctx context.Context, p Policy, fn Func) error {
	logger := logging.FromContext(ctx)
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			if attempt > 1 {
				logger.WithField("attempts", attempt).Info("operation succeeded after retry")
			}
			return nil
		}
		if !apperrors.IsRetryable(err) || attempt == p.MaxAttempts {
			break
		}

		delay := p.delay(attempt)
		logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
		}).WithError(err).Warn("store unavailable, retrying")

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, err)
		}
	}
	return err
}

func (p Policy) delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}
