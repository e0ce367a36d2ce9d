// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/resilience"
)

// SendMessage handles POST /api/v1/messages.
//
// With track_correlation the pending correlation is registered before the
// send starts, so a record synchronized while verification is still
// waiting is already matched.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var body SendMessageRequest
	if !decodeAndValidate(rw, w, r, &body) {
		return
	}
	req := body.toSendRequest()

	if body.TrackCorrelation {
		if h.correlations == nil {
			rw.ServiceUnavailable("correlation tracking requires the synchronizer")
			return
		}
		if body.Text == "" {
			rw.ValidationError("text is required when track_correlation is set", map[string]interface{}{"field": "text"})
			return
		}
		if req.CorrelationID == "" {
			req.CorrelationID = uuid.NewString()
		}
		pending := models.PendingCorrelation{
			CorrelationID: req.CorrelationID,
			RecipientID:   req.RecipientID,
			Text:          req.Text,
		}
		if err := h.correlations.Register(pending); err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to register pending correlation")
			rw.InternalError("failed to register correlation")
			return
		}
	}

	writeOutcome(rw, h.sender.Send(r.Context(), req))
}

func writeOutcome(rw *ResponseWriter, outcome models.SendOutcome) {
	switch {
	case outcome.Success:
		rw.Success(outcome)
	case outcome.Kind == models.OutcomeRateLimited:
		rw.ErrorWithDetails(http.StatusTooManyRequests, ErrCodeFallbackLimited, outcomeMessage(outcome, "fallback rate limit reached"), outcome)
	default:
		rw.ErrorWithDetails(http.StatusBadGateway, ErrCodeSendFailed, outcomeMessage(outcome, "send failed"), outcome)
	}
}

func outcomeMessage(outcome models.SendOutcome, fallback string) string {
	if outcome.Error != "" {
		return outcome.Error
	}
	return fallback
}

// RegisterCorrelation handles POST /api/v1/correlations.
func (h *Handler) RegisterCorrelation(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.correlations == nil {
		rw.ServiceUnavailable("correlation tracking requires the synchronizer")
		return
	}

	var body CorrelationRequest
	if !decodeAndValidate(rw, w, r, &body) {
		return
	}
	if body.CorrelationID == "" {
		body.CorrelationID = uuid.NewString()
	}

	pending := models.PendingCorrelation{
		CorrelationID: body.CorrelationID,
		RecipientID:   body.RecipientID,
		Text:          body.Text,
	}
	if err := h.correlations.Register(pending); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to register pending correlation")
		rw.InternalError("failed to register correlation")
		return
	}
	rw.Created(pending)
}

// ListCorrelations handles GET /api/v1/correlations.
func (h *Handler) ListCorrelations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.correlations == nil {
		rw.Success([]models.PendingCorrelation{})
		return
	}
	rw.Success(h.correlations.Pending())
}

// SyncResult is returned by a manual sync.
type SyncResult struct {
	Cursor     int64      `json:"cursor"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// TriggerSync handles POST /api/v1/sync.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.sync == nil {
		rw.ServiceUnavailable("synchronizer is disabled")
		return
	}

	if err := h.sync.TriggerSync(r.Context()); err != nil {
		if errors.Is(err, resilience.ErrStoreUnavailable) || resilience.IsCircuitOpen(err) {
			rw.ServiceUnavailable("message store unavailable")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("Manual sync failed")
		rw.Error(http.StatusInternalServerError, ErrCodeSyncFailed, "sync failed")
		return
	}

	rw.Success(SyncResult{Cursor: h.sync.Cursor(), LastSyncAt: timePtr(h.sync.LastSyncTime())})
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
