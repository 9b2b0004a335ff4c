// Package readiness waits for an external dependency to become usable,
// checking on a fixed schedule with a bounded number of attempts.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrExhausted is returned when every attempt found the target not ready.
var ErrExhausted = errors.New("not ready after all attempts")

var errNotReady = errors.New("not ready")

// Policy configures a poll: how many checks to make and how long to wait
// between them.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Poll calls ready until it returns true or the policy is exhausted. The
// first check happens immediately. Context cancellation ends the poll early.
func Poll(ctx context.Context, p Policy, ready func() bool) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay
	if delay <= 0 {
		delay = time.Nanosecond // NewConstant rejects zero
	}

	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if ready() {
			return nil
		}
		return retry.RetryableError(errNotReady)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errNotReady):
		return fmt.Errorf("%w (%d attempts)", ErrExhausted, attempts)
	default:
		return err
	}
}
