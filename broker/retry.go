package broker

import (
	"context"
	"fmt"
	"time"
)

// Retrier submits an intent with a per-attempt timeout and exponential
// backoff between attempts. The same intent, ID included, is resubmitted on
// every attempt.
type Retrier struct {
	Attempts int           // total attempts, >= 1
	Backoff  time.Duration // delay before the second attempt, doubled after each failure
	Timeout  time.Duration // per attempt; 0 means no timeout

	// RetryPermanent keeps retrying after a permanent failure. Exits set it:
	// a position must never be left unmanaged because one attempt was refused.
	RetryPermanent bool

	// OnRetry is called after every failed attempt that will be retried.
	OnRetry func(attempt int, err error, wait time.Duration)
	// OnFailure is called after every failed attempt.
	OnFailure func(attempt int, err error)
}

// Submit returns the first fill, or the last error once attempts are
// exhausted, a permanent failure is hit, or ctx is done. The number of
// attempts made is returned either way.
func (r Retrier) Submit(ctx context.Context, ex Executor, in Intent) (Fill, int, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	wait := r.Backoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		fill, err := r.once(ctx, ex, in)
		if err == nil {
			return fill, attempt, nil
		}
		lastErr = err
		if r.OnFailure != nil {
			r.OnFailure(attempt, err)
		}

		if IsPermanent(err) && !r.RetryPermanent {
			return Fill{}, attempt, err
		}
		if attempt == attempts {
			break
		}
		if r.OnRetry != nil {
			r.OnRetry(attempt, err, wait)
		}

		select {
		case <-ctx.Done():
			return Fill{}, attempt, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-time.After(wait):
		}
		wait *= 2
	}
	return Fill{}, attempts, lastErr
}

func (r Retrier) once(ctx context.Context, ex Executor, in Intent) (Fill, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	fill, err := ex.Submit(ctx, in)
	if err != nil {
		return Fill{}, err
	}
	if fill.IntentID == "" {
		fill.IntentID = in.ID
	}
	return fill, nil
}
