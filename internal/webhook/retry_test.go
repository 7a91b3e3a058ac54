package webhook

import (
	"context"
	"fmt"
	"testing"
	"time"
)

var fastRetry = RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

func TestExecuteWithRetry_SuccessFirstAttempt(t *testing.T) {
	attempts, err := executeWithRetry(context.Background(), fastRetry, func(int) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteWithRetry_SuccessAfterRetries(t *testing.T) {
	calls := 0
	attempts, err := executeWithRetry(context.Background(), fastRetry, func(int) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("fail-%d", calls)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteWithRetry_AllFail(t *testing.T) {
	calls := 0
	cfg := fastRetry
	cfg.MaxRetries = 2
	attempts, err := executeWithRetry(context.Background(), cfg, func(int) error {
		calls++
		return fmt.Errorf("always-fail")
	})
	if err == nil || err.Error() != "always-fail" {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 || attempts != 3 {
		t.Errorf("calls=%d attempts=%d, want 3", calls, attempts)
	}
}

func TestExecuteWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0
	_, err := executeWithRetry(ctx, cfg, func(int) error {
		calls++
		cancel()
		return fmt.Errorf("fail")
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestBackoffWithJitter(t *testing.T) {
	base, max := 2*time.Second, 30*time.Second
	for attempt := 0; attempt < 8; attempt++ {
		want := base << uint(attempt)
		if want > max {
			want = max
		}
		lo, hi := want-want/4, want+want/4
		for i := 0; i < 50; i++ {
			d := backoffWithJitter(base, max, attempt)
			if d < lo || d > hi {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, lo, hi)
			}
		}
	}
}
