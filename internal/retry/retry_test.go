package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"quotebridge/internal/types"
)

func transientErr(msg string) error {
	return types.Errorf(types.ErrKindTransient, "%s", msg)
}

func TestDoValueSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 3, Delay: time.Millisecond}

	got, err := DoValue(context.Background(), cfg, func() (int, error) {
		calls++
		if calls <= 2 {
			return 0, transientErr("socket timeout")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	if calls != 3 {
		t.Fatalf("action invoked %d times, want 3", calls)
	}
}

func TestDoValueExhaustsRetries(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 1, Delay: time.Millisecond}

	_, err := DoValue(context.Background(), cfg, func() (int, error) {
		calls++
		return 0, transientErr("still down")
	})
	if err == nil {
		t.Fatal("expected terminal error")
	}
	kind, ok := types.KindOf(err)
	if !ok || kind != types.ErrKindRetryExhausted {
		t.Fatalf("got error kind %v, want retry_exhausted", kind)
	}
	if calls != 2 {
		t.Fatalf("action invoked %d times, want 2", calls)
	}
	// The last cause must stay in the chain for diagnosis.
	var te *types.Error
	if !errors.As(errors.Unwrap(err), &te) || te.Kind != types.ErrKindTransient {
		t.Fatalf("terminal error does not wrap the last transient cause: %v", err)
	}
}

func TestDoFailsFastOnNonTransientError(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 5, Delay: time.Millisecond}
	permanent := types.Errorf(types.ErrKindCapability, "depth not supported")

	err := Do(context.Background(), cfg, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("got %v, want the permanent error unchanged", err)
	}
	if calls != 1 {
		t.Fatalf("action invoked %d times, want 1", calls)
	}
}

func TestDoZeroRetriesRunsOnce(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 0, Delay: time.Millisecond}

	err := Do(context.Background(), cfg, func() error {
		calls++
		return transientErr("nope")
	})
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if calls != 1 {
		t.Fatalf("action invoked %d times, want 1", calls)
	}
}

func TestDoInterruptedDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 3, Delay: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func() error {
			return transientErr("timeout")
		})
	}()

	cancel()

	select {
	case err := <-done:
		kind, ok := types.KindOf(err)
		if !ok || kind != types.ErrKindRetryExhausted {
			t.Fatalf("got error kind %v, want retry_exhausted", kind)
		}
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("interruption not surfaced in error chain: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("backoff sleep was not interruptible")
	}
}
