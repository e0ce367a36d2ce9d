// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package resilience

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/metrics"
	"github.com/tomtom215/courier/internal/models"
)

// Operation names guarded by the engine.
const (
	OpPrimaryChannel   = "channel-primary"
	OpSecondaryChannel = "channel-secondary"
	OpStoreQuery       = "store-query"
)

// BreakerConfig configures every breaker in a registry.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32

	// ResetTimeout is how long the circuit stays open before a single probe is allowed.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns 5 consecutive failures and a 60s reset timeout.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
	}
}

// BreakerRegistry holds one circuit breaker per operation name, so channels
// fail independently of each other.
//
// Breakers are gobreaker instances with MaxRequests=1 (exactly one half-open
// probe) and Interval=0 (closed-state counts are never cleared on a timer,
// only by a success).
type BreakerRegistry struct {
	config BreakerConfig

	mu       sync.Mutex
	breakers map[string]*namedBreaker
}

type namedBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[interface{}]

	mu                  sync.Mutex
	lastFailureAt       time.Time
	consecutiveFailures uint32
}

// NewBreakerRegistry creates an empty registry. Breakers are created on first use.
func NewBreakerRegistry(cfg BreakerConfig) *BreakerRegistry {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	return &BreakerRegistry{
		config:   cfg,
		breakers: make(map[string]*namedBreaker),
	}
}

func (r *BreakerRegistry) get(name string) *namedBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	threshold := r.config.FailureThreshold
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	b := &namedBreaker{name: name}
	b.cb = gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     r.config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= threshold
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	r.breakers[name] = b
	return b
}

// countsAsSuccess decides what the breaker treats as a healthy call.
// Permanent errors describe the request, not the channel.
func countsAsSuccess(err error) bool {
	return err == nil || IsPermanent(err)
}

// Execute runs fn under the named breaker. When the circuit is open (or the
// single half-open probe is already in flight) fn is not called and a
// *CircuitOpenError is returned.
func (r *BreakerRegistry) Execute(name string, fn func() (interface{}, error)) (interface{}, error) {
	b := r.get(name)

	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
			return nil, &CircuitOpenError{Operation: name, Err: err}
		}

		if !countsAsSuccess(err) {
			b.mu.Lock()
			b.lastFailureAt = time.Now()
			b.consecutiveFailures++
			failures := b.consecutiveFailures
			b.mu.Unlock()

			metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(float64(failures))
			return result, err
		}
	}

	b.mu.Lock()
	b.consecutiveFailures = 0
	b.mu.Unlock()

	metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	return result, err
}

// Do is Execute for calls that only return an error.
func (r *BreakerRegistry) Do(name string, fn func() error) error {
	_, err := r.Execute(name, func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Call is Execute with a typed result.
func Call[T any](r *BreakerRegistry, name string, fn func() (T, error)) (T, error) {
	var zero T
	result, err := r.Execute(name, func() (interface{}, error) {
		return fn()
	})
	if result == nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker %s: unexpected result type %T", name, result)
	}
	return typed, err
}

// State returns a snapshot of the named breaker.
func (r *BreakerRegistry) State(name string) models.BreakerState {
	return r.get(name).snapshot()
}

// States returns snapshots of all breakers created so far, sorted by name.
func (r *BreakerRegistry) States() []models.BreakerState {
	r.mu.Lock()
	breakers := make([]*namedBreaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	sort.Slice(breakers, func(i, j int) bool {
		return breakers[i].name < breakers[j].name
	})

	states := make([]models.BreakerState, 0, len(breakers))
	for _, b := range breakers {
		states = append(states, b.snapshot())
	}
	return states
}

func (b *namedBreaker) snapshot() models.BreakerState {
	state := models.BreakerState{
		Name:   b.name,
		Status: toBreakerStatus(b.cb.State()),
	}

	b.mu.Lock()
	state.ConsecutiveFailures = b.consecutiveFailures
	if !b.lastFailureAt.IsZero() {
		at := b.lastFailureAt
		state.LastFailureAt = &at
	}
	b.mu.Unlock()

	return state
}

func toBreakerStatus(state gobreaker.State) models.BreakerStatus {
	switch state {
	case gobreaker.StateOpen:
		return models.BreakerOpen
	case gobreaker.StateHalfOpen:
		return models.BreakerHalfOpen
	default:
		return models.BreakerClosed
	}
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
