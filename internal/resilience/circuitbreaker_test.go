// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/courier/internal/models"
)

var errBoom = errors.New("boom")

func transientErr() error {
	return NewTransient("primary", CodeConnectionFailed, errBoom)
}

func newTestRegistry(threshold uint32, reset time.Duration) *BreakerRegistry {
	return NewBreakerRegistry(BreakerConfig{FailureThreshold: threshold, ResetTimeout: reset})
}

// TestBreaker_OpensAtThreshold verifies the circuit opens after exactly N consecutive failures
func TestBreaker_OpensAtThreshold(t *testing.T) {
	reg := newTestRegistry(3, time.Minute)

	for i := 0; i < 2; i++ {
		_ = reg.Do("op", transientErr)
	}
	if got := reg.State("op").Status; got != models.BreakerClosed {
		t.Fatalf("after 2 failures status = %s, want closed", got)
	}

	_ = reg.Do("op", transientErr)
	state := reg.State("op")
	if state.Status != models.BreakerOpen {
		t.Fatalf("after 3 failures status = %s, want open", state.Status)
	}
	if state.ConsecutiveFailures != 3 {
		t.Errorf("ConsecutiveFailures = %d, want 3", state.ConsecutiveFailures)
	}
	if state.LastFailureAt == nil {
		t.Error("LastFailureAt should be set")
	}

	called := false
	err := reg.Do("op", func() error {
		called = true
		return nil
	})
	if called {
		t.Error("wrapped call must not run while the circuit is open")
	}
	if !IsCircuitOpen(err) {
		t.Errorf("expected CircuitOpenError, got %v", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected wrapped ErrOpenState, got %v", err)
	}
}

// TestBreaker_SuccessResetsCount verifies a success in the closed state clears the failure streak
func TestBreaker_SuccessResetsCount(t *testing.T) {
	reg := newTestRegistry(3, time.Minute)

	_ = reg.Do("op", transientErr)
	_ = reg.Do("op", transientErr)
	_ = reg.Do("op", func() error { return nil })
	_ = reg.Do("op", transientErr)
	_ = reg.Do("op", transientErr)

	state := reg.State("op")
	if state.Status != models.BreakerClosed {
		t.Errorf("status = %s, want closed", state.Status)
	}
	if state.ConsecutiveFailures != 2 {
		t.Errorf("ConsecutiveFailures = %d, want 2", state.ConsecutiveFailures)
	}
}

// TestBreaker_PermanentErrorsDoNotTrip verifies request-level errors leave the circuit closed
func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	reg := newTestRegistry(2, time.Minute)

	for i := 0; i < 5; i++ {
		err := reg.Do("op", func() error {
			return NewPermanent("primary", CodeInvalidRecipient, errBoom)
		})
		if !IsPermanent(err) {
			t.Fatalf("permanent error should pass through, got %v", err)
		}
	}

	if got := reg.State("op").Status; got != models.BreakerClosed {
		t.Errorf("status = %s, want closed", got)
	}
}

// TestBreaker_HalfOpenSingleProbe verifies only one probe is admitted after the reset timeout
func TestBreaker_HalfOpenSingleProbe(t *testing.T) {
	reg := newTestRegistry(1, 50*time.Millisecond)

	_ = reg.Do("op", transientErr)
	if got := reg.State("op").Status; got != models.BreakerOpen {
		t.Fatalf("status = %s, want open", got)
	}

	// Still open before the timeout
	if err := reg.Do("op", func() error { return nil }); !IsCircuitOpen(err) {
		t.Fatalf("expected rejection before reset timeout, got %v", err)
	}

	time.Sleep(80 * time.Millisecond)
	if got := reg.State("op").Status; got != models.BreakerHalfOpen {
		t.Fatalf("status = %s, want half_open", got)
	}

	probeStarted := make(chan struct{})
	releaseProbe := make(chan struct{})
	var wg sync.WaitGroup
	var probeErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		probeErr = reg.Do("op", func() error {
			close(probeStarted)
			<-releaseProbe
			return nil
		})
	}()

	<-probeStarted
	err := reg.Do("op", func() error { return nil })
	if !IsCircuitOpen(err) {
		t.Errorf("second half-open call should be rejected, got %v", err)
	}
	if !errors.Is(err, gobreaker.ErrTooManyRequests) {
		t.Errorf("expected wrapped ErrTooManyRequests, got %v", err)
	}

	close(releaseProbe)
	wg.Wait()

	if probeErr != nil {
		t.Errorf("probe failed: %v", probeErr)
	}
	if got := reg.State("op").Status; got != models.BreakerClosed {
		t.Errorf("status after successful probe = %s, want closed", got)
	}
}

// TestBreaker_FailedProbeReopens verifies a failing probe returns the circuit to open
func TestBreaker_FailedProbeReopens(t *testing.T) {
	reg := newTestRegistry(1, 30*time.Millisecond)

	_ = reg.Do("op", transientErr)
	time.Sleep(50 * time.Millisecond)

	if err := reg.Do("op", transientErr); IsCircuitOpen(err) {
		t.Fatalf("probe should have been admitted, got %v", err)
	}
	if got := reg.State("op").Status; got != models.BreakerOpen {
		t.Errorf("status after failed probe = %s, want open", got)
	}
}

// TestBreaker_IndependentOperations verifies breakers do not share state
func TestBreaker_IndependentOperations(t *testing.T) {
	reg := newTestRegistry(1, time.Minute)

	_ = reg.Do(OpPrimaryChannel, transientErr)

	if got := reg.State(OpPrimaryChannel).Status; got != models.BreakerOpen {
		t.Errorf("primary status = %s, want open", got)
	}
	if err := reg.Do(OpSecondaryChannel, func() error { return nil }); err != nil {
		t.Errorf("secondary should be unaffected, got %v", err)
	}

	states := reg.States()
	if len(states) != 2 {
		t.Fatalf("States() returned %d entries, want 2", len(states))
	}
	if states[0].Name != OpPrimaryChannel || states[1].Name != OpSecondaryChannel {
		t.Errorf("States() not sorted by name: %+v", states)
	}
}

func TestCall_TypedResult(t *testing.T) {
	reg := newTestRegistry(3, time.Minute)

	n, err := Call(reg, "op", func() (int, error) { return 42, nil })
	if err != nil || n != 42 {
		t.Errorf("Call() = %d, %v; want 42, nil", n, err)
	}

	n, err = Call(reg, "op", func() (int, error) { return 0, transientErr() })
	if !IsTransient(err) || n != 0 {
		t.Errorf("Call() = %d, %v; want 0, transient error", n, err)
	}
}

func TestStateHelpers(t *testing.T) {
	tests := []struct {
		state  gobreaker.State
		str    string
		num    float64
		status models.BreakerStatus
	}{
		{gobreaker.StateClosed, "closed", 0, models.BreakerClosed},
		{gobreaker.StateHalfOpen, "half-open", 1, models.BreakerHalfOpen},
		{gobreaker.StateOpen, "open", 2, models.BreakerOpen},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			if got := stateToString(tt.state); got != tt.str {
				t.Errorf("stateToString() = %q, want %q", got, tt.str)
			}
			if got := stateToFloat(tt.state); got != tt.num {
				t.Errorf("stateToFloat() = %v, want %v", got, tt.num)
			}
			if got := toBreakerStatus(tt.state); got != tt.status {
				t.Errorf("toBreakerStatus() = %q, want %q", got, tt.status)
			}
		})
	}
}
