// Package retry provides a bounded retry executor for network-facing
// actions. Transient failures are retried with a linearly growing delay;
// anything else fails fast.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"quotebridge/internal/types"
)

// Config bounds the executor: an action runs at most MaxRetries+1 times,
// sleeping Delay × attempt between tries.
type Config struct {
	MaxRetries int
	Delay      time.Duration
}

// Do executes fn, retrying on transient errors per cfg. The backoff sleep
// is interruptible: ctx cancellation during backoff surfaces as a terminal
// error wrapping ctx.Err().
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoValue(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoValue is Do for value-returning actions, with identical retry
// semantics. On failure the zero value of T is returned alongside the
// error.
func DoValue[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !types.IsTransient(err) {
			return zero, err
		}
		lastErr = err

		if attempt > cfg.MaxRetries {
			return zero, types.NewError(types.ErrKindRetryExhausted,
				"retries exhausted", lastErr)
		}

		delay := cfg.Delay * time.Duration(attempt)
		log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying after transient error")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, types.NewError(types.ErrKindRetryExhausted,
				"interrupted during retry backoff", ctx.Err())
		}
	}
}
