// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.BaseDelay = time.Millisecond
	p.MaxJitter = 0
	return p
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{
		BaseDelay: time.Second,
		MaxDelay:  5 * time.Second,
		MaxJitter: time.Second,
		Jitter:    func(time.Duration) time.Duration { return 250 * time.Millisecond },
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1250 * time.Millisecond},
		{1, 2250 * time.Millisecond},
		{2, 4250 * time.Millisecond},
		{3, 5250 * time.Millisecond}, // capped at MaxDelay before jitter
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicy_JitterBounds(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxJitter: time.Second}

	for i := 0; i < 100; i++ {
		got := p.Backoff(0)
		if got < time.Second || got >= 2*time.Second {
			t.Fatalf("Backoff(0) = %v, want within [1s, 2s)", got)
		}
	}
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   func(error) bool
	}{
		{
			name:      "success first try",
			errs:      []error{nil},
			wantCalls: 1,
			wantErr:   func(err error) bool { return err == nil },
		},
		{
			name:      "transient then success",
			errs:      []error{transientErr(), nil},
			wantCalls: 2,
			wantErr:   func(err error) bool { return err == nil },
		},
		{
			name:      "transient exhausted",
			errs:      []error{transientErr(), transientErr(), transientErr(), nil},
			wantCalls: 3,
			wantErr:   IsTransient,
		},
		{
			name:      "permanent stops immediately",
			errs:      []error{NewPermanent("primary", CodeInvalidRecipient, errBoom), nil},
			wantCalls: 1,
			wantErr:   IsPermanent,
		},
		{
			name:      "unclassified error is not retried",
			errs:      []error{errBoom, nil},
			wantCalls: 1,
			wantErr:   func(err error) bool { return errors.Is(err, errBoom) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			attempts, err := Retry(context.Background(), fastPolicy(), func(_ context.Context, attempt int) error {
				if attempt != calls {
					t.Errorf("attempt = %d, want %d", attempt, calls)
				}
				e := tt.errs[calls]
				calls++
				return e
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if attempts != tt.wantCalls {
				t.Errorf("attempts = %d, want %d", attempts, tt.wantCalls)
			}
			if !tt.wantErr(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRetry_OnRetry(t *testing.T) {
	p := fastPolicy()
	var seen []int
	p.OnRetry = func(attempt int, _ time.Duration, _ error) {
		seen = append(seen, attempt)
	}

	_, _ = Retry(context.Background(), p, func(context.Context, int) error {
		return transientErr()
	})

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", seen)
	}
}

func TestRetry_ContextCanceledDuringWait(t *testing.T) {
	p := DefaultRetryPolicy()
	p.BaseDelay = time.Hour
	p.MaxDelay = 0
	p.MaxJitter = 0

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	attempts, err := Retry(ctx, p, func(context.Context, int) error {
		return transientErr()
	})

	if time.Since(start) > time.Second {
		t.Error("Retry did not return promptly after cancellation")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if !IsTransient(err) {
		t.Errorf("expected last channel error, got %v", err)
	}
}

func TestRetry_ContextAlreadyDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	attempts, err := Retry(ctx, fastPolicy(), func(context.Context, int) error {
		called = true
		return nil
	})

	if called {
		t.Error("fn should not run with a canceled context")
	}
	if attempts != 0 || !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() = %d, %v; want 0, context.Canceled", attempts, err)
	}
}
