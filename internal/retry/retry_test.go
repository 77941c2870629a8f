package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestDo(t *testing.T) {
	t.Run("succeeds without retrying", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(), nil, func(context.Context) error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(), nil, func(context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("transient failure %d", calls)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("exhausts retries and wraps last error", func(t *testing.T) {
		sentinel := errors.New("still broken")
		calls := 0
		err := Do(context.Background(), fastConfig(), nil, func(context.Context) error {
			calls++
			return sentinel
		})
		if err == nil {
			t.Fatal("expected error after exhausting retries")
		}
		if !errors.Is(err, sentinel) {
			t.Errorf("expected wrapped sentinel, got %v", err)
		}
		if calls != 4 {
			t.Errorf("expected 4 calls (1 + 3 retries), got %d", calls)
		}
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		permanent := errors.New("video unavailable")
		classifier := func(err error) bool { return !errors.Is(err, permanent) }

		calls := 0
		err := Do(context.Background(), fastConfig(), classifier, func(context.Context) error {
			calls++
			return permanent
		})
		if !errors.Is(err, permanent) {
			t.Fatalf("expected permanent error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call for permanent error, got %d", calls)
		}
	})

	t.Run("context cancellation aborts backoff", func(t *testing.T) {
		cfg := fastConfig()
		cfg.InitialBackoff = time.Minute
		cfg.MaxBackoff = time.Minute

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := Do(ctx, cfg, nil, func(context.Context) error {
			return errors.New("always failing")
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Errorf("cancellation took too long: %v", elapsed)
		}
	})

	t.Run("context errors are not retryable by default", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(), nil, func(context.Context) error {
			calls++
			return context.DeadlineExceeded
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("OnRetry observes each backoff", func(t *testing.T) {
		var attempts []int
		cfg := fastConfig()
		cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
		}

		Do(context.Background(), cfg, nil, func(context.Context) error {
			return errors.New("nope")
		})

		if len(attempts) != 3 {
			t.Fatalf("expected 3 retry notifications, got %d", len(attempts))
		}
		for i, attempt := range attempts {
			if attempt != i+1 {
				t.Errorf("notification %d reported attempt %d", i, attempt)
			}
		}
	})
}

func TestJitter(t *testing.T) {
	if got := jitter(time.Second, 0); got != 0 {
		t.Errorf("jitter with zero fraction = %v, want 0", got)
	}

	for i := 0; i < 100; i++ {
		got := jitter(time.Second, 0.2)
		if got < -200*time.Millisecond || got > 200*time.Millisecond {
			t.Fatalf("jitter out of bounds: %v", got)
		}
	}
}
