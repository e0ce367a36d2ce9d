// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/courier/internal/cache"
	"github.com/tomtom215/courier/internal/metrics"
	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/resilience"
)

// FallbackConfig limits secondary-channel use per recipient.
type FallbackConfig struct {
	// MaxPerRecipient is the number of fallbacks allowed per recipient
	// within ResetInterval.
	MaxPerRecipient int

	// ResetInterval is the length of the rolling window.
	ResetInterval time.Duration
}

// DefaultFallbackConfig returns 3 fallbacks per recipient per hour.
func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		MaxPerRecipient: 3,
		ResetInterval:   time.Hour,
	}
}

// Coordinator decides whether a failed primary send goes to the secondary
// channel. Each recipient has a sliding log of fallback attempts; once it is
// full, further fallbacks are refused until the oldest attempt ages out.
//
// A slot is reserved before the secondary channel is invoked and is kept
// whether or not that call succeeds, so the number of secondary invocations
// per recipient never exceeds the limit in any window.
type Coordinator struct {
	executor *Executor
	window   *cache.AttemptWindow
	logger   zerolog.Logger

	now func() time.Time
}

// NewCoordinator creates a coordinator. Zero config fields use defaults.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCoordinator(executor *Executor, cfg FallbackConfig, logger zerolog.Logger) *Coordinator {
	defaults := DefaultFallbackConfig()
	if cfg.MaxPerRecipient <= 0 {
		cfg.MaxPerRecipient = defaults.MaxPerRecipient
	}
	if cfg.ResetInterval <= 0 {
		cfg.ResetInterval = defaults.ResetInterval
	}
	return &Coordinator{
		executor: executor,
		window:   cache.NewAttemptWindow(cfg.ResetInterval, cfg.MaxPerRecipient),
		logger:   logger.With().Str("component", "fallback").Logger(),
		now:      time.Now,
	}
}

// MaybeFallback tries the secondary channel for req unless recipient has
// used up its fallback allowance. primary describes the failed primary
// attempt and is returned, annotated, when no fallback happens. Spellings
// of the same handle share one allowance.
func (c *Coordinator) MaybeFallback(ctx context.Context, recipient string, req models.SendRequest, reason models.FallbackReason, primary models.SendOutcome) models.SendOutcome {
	recipient = models.NormalizeHandle(recipient)
	outcome := primary
	outcome.Success = false
	outcome.FallbackReason = reason
	outcome.CorrelationID = req.CorrelationID

	if !c.executor.channels.Has(models.ChannelSecondary) {
		outcome.Kind = models.OutcomeFailed
		metrics.RecordFallback(string(reason), "unavailable")
		c.logger.Warn().
			Str("recipient", recipient).
			Str("reason", string(reason)).
			Str("correlation_id", req.CorrelationID).
			Msg("Fallback wanted but no secondary channel is configured")
		return outcome
	}

	ok, count, retryAfter := c.window.Reserve(recipient, c.now())
	if !ok {
		limitErr := &resilience.RateLimitExceededError{
			Recipient:  recipient,
			Attempts:   count,
			Window:     c.window.Window(),
			RetryAfter: retryAfter,
		}
		outcome.Kind = models.OutcomeRateLimited
		outcome.Err = limitErr
		outcome.Error = joinErrors(primary.Error, limitErr.Error())
		metrics.RecordFallback(string(reason), "rate_limited")
		c.logger.Warn().
			Str("recipient", recipient).
			Str("reason", string(reason)).
			Str("correlation_id", req.CorrelationID).
			Int("attempts", count).
			Dur("retry_after", retryAfter).
			Msg("Fallback refused, recipient limit reached")
		return outcome
	}

	c.logger.Info().
		Str("recipient", recipient).
		Str("reason", string(reason)).
		Str("correlation_id", req.CorrelationID).
		Int("attempt", count).
		Int("limit", c.window.Limit()).
		Msg("Falling back to secondary channel")

	result := c.executor.Send(ctx, req, models.ChannelSecondary)
	outcome.ChannelUsed = models.ChannelSecondary

	if result.Success {
		outcome.Success = true
		outcome.Kind = models.OutcomeDeliveredViaFallback
		// The secondary channel has no delivery store to confirm against.
		outcome.Status = models.DeliveryStatusUnknown
		outcome.Err = nil
		outcome.Error = ""
		metrics.RecordFallback(string(reason), "delivered")
		return outcome
	}

	outcome.Kind = models.OutcomeFailed
	outcome.Err = result.RawError
	outcome.Error = joinErrors(primary.Error, fmt.Sprintf("secondary: %v", result.RawError))
	metrics.RecordFallback(string(reason), "failed")
	return outcome
}

// States returns the live fallback window of every recipient that has one.
func (c *Coordinator) States() map[string]models.FallbackState {
	snapshot := c.window.Snapshot(c.now())
	states := make(map[string]models.FallbackState, len(snapshot))
	for recipient, s := range snapshot {
		states[recipient] = models.FallbackState{
			AttemptCount: s.Count,
			WindowStart:  s.WindowStart,
		}
	}
	return states
}

func joinErrors(first, second string) string {
	switch {
	case first == "":
		return second
	case second == "":
		return first
	default:
		return first + "; " + second
	}
}
