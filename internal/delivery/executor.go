// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/courier/internal/metrics"
	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/resilience"
)

// Executor invokes channels through their circuit breaker and retries
// transient failures.
type Executor struct {
	channels *ChannelSet
	breakers *resilience.BreakerRegistry
	policy   resilience.RetryPolicy
	logger   zerolog.Logger
}

// NewExecutor creates an executor. A zero policy uses resilience.DefaultRetryPolicy.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewExecutor(channels *ChannelSet, breakers *resilience.BreakerRegistry, policy resilience.RetryPolicy, logger zerolog.Logger) *Executor {
	if policy.Attempts <= 0 {
		policy = resilience.DefaultRetryPolicy()
	}
	return &Executor{
		channels: channels,
		breakers: breakers,
		policy:   policy,
		logger:   logger.With().Str("component", "channel_executor").Logger(),
	}
}

// breakerName returns the breaker operation guarding kind.
func breakerName(kind models.ChannelKind) string {
	if kind == models.ChannelSecondary {
		return resilience.OpSecondaryChannel
	}
	return resilience.OpPrimaryChannel
}

// Send delivers req over the channel of the given kind.
//
// Success only means the channel accepted the request. Permanent errors and
// an open circuit end the attempt loop immediately; RawError carries the
// last error unwrapped so callers can classify it.
func (e *Executor) Send(ctx context.Context, req models.SendRequest, kind models.ChannelKind) models.ChannelAttemptResult {
	result := models.ChannelAttemptResult{ChannelKind: kind}

	ch, err := e.channels.Get(kind)
	if err != nil {
		result.RawError = err
		return result
	}

	op := breakerName(kind)
	policy := e.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		e.logger.Warn().
			Err(err).
			Str("channel", string(kind)).
			Str("correlation_id", req.CorrelationID).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Channel send failed, retrying")
	}

	attempts, err := resilience.Retry(ctx, policy, func(ctx context.Context, _ int) error {
		start := time.Now()
		sendErr := e.breakers.Do(op, func() error {
			return ch.Send(ctx, req)
		})
		metrics.RecordChannelAttempt(string(kind), attemptLabel(sendErr), time.Since(start))
		return sendErr
	})

	result.Attempts = attempts
	result.RawError = err
	result.Success = err == nil

	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("channel", string(kind)).
			Str("correlation_id", req.CorrelationID).
			Int("attempts", attempts).
			Str("error_code", resilience.ErrorCode(err)).
			Msg("Channel send failed")
	} else {
		e.logger.Debug().
			Str("channel", string(kind)).
			Str("correlation_id", req.CorrelationID).
			Int("attempts", attempts).
			Msg("Channel accepted message")
	}

	return result
}

func attemptLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case resilience.IsCircuitOpen(err):
		return "rejected"
	case resilience.IsPermanent(err):
		return "permanent"
	default:
		return "transient"
	}
}
