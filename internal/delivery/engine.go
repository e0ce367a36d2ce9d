// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/metrics"
	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/resilience"
)

// Engine runs the send pipeline: primary channel, verification, fallback.
type Engine struct {
	executor *Executor
	verifier *Verifier
	fallback *Coordinator
	logger   zerolog.Logger

	now func() time.Time
}

// NewEngine wires the pipeline. A nil verifier skips verification and
// reports accepted sends as accepted_unconfirmed.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEngine(executor *Executor, verifier *Verifier, fallback *Coordinator, logger zerolog.Logger) *Engine {
	return &Engine{
		executor: executor,
		verifier: verifier,
		fallback: fallback,
		logger:   logger.With().Str("component", "engine").Logger(),
		now:      time.Now,
	}
}

// Send delivers req and reports how it ended. It blocks through the settle
// delays; cancel ctx to stop waiting. A request without a CorrelationID is
// given one.
func (e *Engine) Send(ctx context.Context, req models.SendRequest) models.SendOutcome {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	// Channels, the fallback window and the store lookup all key on the
	// canonical handle.
	req.RecipientID = models.NormalizeHandle(req.RecipientID)
	ctx = logging.ContextWithCorrelationID(ctx, req.CorrelationID)

	outcome := e.send(ctx, req)
	outcome.CorrelationID = req.CorrelationID
	if outcome.Err != nil && outcome.Error == "" {
		outcome.Error = outcome.Err.Error()
	}

	metrics.RecordSendOutcome(string(outcome.Kind), string(outcome.ChannelUsed))

	event := e.logger.Info()
	if !outcome.Success {
		event = e.logger.Warn()
	}
	event.
		Str("correlation_id", req.CorrelationID).
		Str("kind", string(outcome.Kind)).
		Str("channel", string(outcome.ChannelUsed)).
		Str("status", string(outcome.Status)).
		Str("fallback_reason", string(outcome.FallbackReason)).
		Bool("media", req.HasAttachment()).
		Msg("Send finished")

	return outcome
}

func (e *Engine) send(ctx context.Context, req models.SendRequest) models.SendOutcome {
	result := e.executor.Send(ctx, req, models.ChannelPrimary)
	sentAt := e.now()

	if !result.Success {
		failed := models.SendOutcome{
			Kind:        models.OutcomeFailed,
			ChannelUsed: models.ChannelPrimary,
			Status:      models.DeliveryStatusUnknown,
			Err:         result.RawError,
		}
		if result.RawError != nil {
			failed.Error = fmt.Sprintf("primary: %v", result.RawError)
		}
		if ctx.Err() != nil {
			return failed
		}

		reason := models.FallbackReasonChannelError
		if resilience.IsCircuitOpen(result.RawError) {
			reason = models.FallbackReasonCircuitOpen
		}
		return e.fallback.MaybeFallback(ctx, req.RecipientID, req, reason, failed)
	}

	accepted := models.SendOutcome{
		Success:     true,
		Kind:        models.OutcomeAcceptedUnconfirmed,
		ChannelUsed: models.ChannelPrimary,
		Status:      models.DeliveryStatusUnknown,
	}
	if e.verifier == nil {
		return accepted
	}

	verdict := e.verifier.Verify(ctx, req, sentAt)
	accepted.Status = verdict.Status
	accepted.RecordID = verdict.RecordID

	if verdict.Err != nil {
		return accepted
	}
	if !verdict.NeedsFallback() {
		if verdict.Status == models.DeliveryStatusDelivered {
			accepted.Kind = models.OutcomeDelivered
		}
		return accepted
	}

	failed := models.SendOutcome{
		Kind:        models.OutcomeFailed,
		ChannelUsed: models.ChannelPrimary,
		Status:      verdict.Status,
		RecordID:    verdict.RecordID,
		Error:       fmt.Sprintf("primary: %s", verdict.FallbackReason),
	}
	return e.fallback.MaybeFallback(ctx, req.RecipientID, req, verdict.FallbackReason, failed)
}

// FallbackStates exposes the coordinator's per-recipient windows.
func (e *Engine) FallbackStates() map[string]models.FallbackState {
	return e.fallback.States()
}
