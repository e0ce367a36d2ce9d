// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/metrics"
	"github.com/tomtom215/courier/internal/models"
)

// RecordLookup is the part of the message store the verifier reads.
type RecordLookup interface {
	FindRecentOutbound(ctx context.Context, handle, text string, within time.Duration) (*models.DeliveryRecord, error)
	GetStatus(ctx context.Context, recordID string) (*models.DeliveryRecord, error)
}

// VerifierConfig holds the verification timings.
type VerifierConfig struct {
	// TextSettleDelay is the wait before the first lookup of a text send.
	TextSettleDelay time.Duration

	// MediaSettleDelay is the wait before the first lookup of a media send.
	MediaSettleDelay time.Duration

	// MediaRecheckDelay is the wait between the two checks of a media send.
	MediaRecheckDelay time.Duration

	// LookupWindow bounds how far back the store is searched.
	LookupWindow time.Duration
}

// DefaultVerifierConfig returns the default timings.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		TextSettleDelay:   3500 * time.Millisecond,
		MediaSettleDelay:  8 * time.Second,
		MediaRecheckDelay: 7 * time.Second,
		LookupWindow:      10 * time.Second,
	}
}

// VerifierConfigFrom converts the loaded configuration.
func VerifierConfigFrom(cfg *config.VerifierConfig) VerifierConfig {
	return VerifierConfig{
		TextSettleDelay:   cfg.TextSettleDelay,
		MediaSettleDelay:  cfg.MediaSettleDelay,
		MediaRecheckDelay: cfg.MediaRecheckDelay,
		LookupWindow:      cfg.LookupWindow,
	}
}

// VerificationResult is the verifier's verdict on one send.
type VerificationResult struct {
	Status   models.DeliveryStatus
	RecordID string

	// FallbackReason is set when the secondary channel should be tried.
	FallbackReason models.FallbackReason

	// SecondCheck reports whether the media recheck ran.
	SecondCheck bool

	// Err is the context error when the caller stopped waiting.
	Err error
}

// NeedsFallback reports whether the verdict calls for the secondary channel.
func (r VerificationResult) NeedsFallback() bool {
	return r.FallbackReason != ""
}

// Verifier confirms delivery against the eventually-consistent store.
type Verifier struct {
	store  RecordLookup
	config VerifierConfig
	logger zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewVerifier creates a verifier. Negative delays are treated as zero and a
// zero lookup window uses the default.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewVerifier(store RecordLookup, cfg VerifierConfig, logger zerolog.Logger) *Verifier {
	if cfg.TextSettleDelay < 0 {
		cfg.TextSettleDelay = 0
	}
	if cfg.MediaSettleDelay < 0 {
		cfg.MediaSettleDelay = 0
	}
	if cfg.MediaRecheckDelay < 0 {
		cfg.MediaRecheckDelay = 0
	}
	if cfg.LookupWindow <= 0 {
		cfg.LookupWindow = 10 * time.Second
	}
	return &Verifier{
		store:  store,
		config: cfg,
		logger: logger.With().Str("component", "verifier").Logger(),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Verify waits for the store to settle and classifies the send.
//
// A missing record or a store error yields unknown, which is not a failure.
// Media sends that are not resolved on the first check get exactly one more.
func (v *Verifier) Verify(ctx context.Context, req models.SendRequest, sentAt time.Time) VerificationResult {
	media := req.HasAttachment()
	settle := v.config.TextSettleDelay
	if media {
		settle = v.config.MediaSettleDelay
	}

	if err := v.sleep(ctx, settle-v.now().Sub(sentAt)); err != nil {
		return VerificationResult{Status: models.DeliveryStatusUnknown, Err: err}
	}

	first := v.lookup(ctx, req, sentAt)
	metrics.RecordVerification(string(first.Status), false)

	if first.Status == models.DeliveryStatusFailed {
		first.FallbackReason = models.FallbackReasonDeliveryFailed
		return first
	}
	if !media || first.Status == models.DeliveryStatusDelivered {
		return first
	}

	v.logger.Debug().
		Str("correlation_id", req.CorrelationID).
		Str("status", string(first.Status)).
		Dur("delay", v.config.MediaRecheckDelay).
		Msg("Media delivery unresolved, checking again")

	if err := v.sleep(ctx, v.config.MediaRecheckDelay); err != nil {
		first.Err = err
		return first
	}

	var second VerificationResult
	if first.RecordID != "" {
		second = v.reread(ctx, first.RecordID)
	} else {
		second = v.lookup(ctx, req, sentAt)
	}
	second.SecondCheck = true
	metrics.RecordVerification(string(second.Status), true)

	switch second.Status {
	case models.DeliveryStatusFailed:
		second.FallbackReason = models.FallbackReasonDeliveryFailedAfterRetry
	case models.DeliveryStatusDelivered:
	default:
		second.FallbackReason = models.FallbackReasonDeliveryTimeout
	}
	return second
}

func (v *Verifier) lookup(ctx context.Context, req models.SendRequest, sentAt time.Time) VerificationResult {
	// Widen the window so a late check still covers the moment of sending.
	within := v.config.LookupWindow
	if elapsed := v.now().Sub(sentAt) + time.Second; elapsed > within {
		within = elapsed
	}

	record, err := v.store.FindRecentOutbound(ctx, req.RecipientID, req.Text, within)
	return v.toResult(record, err, req.CorrelationID)
}

func (v *Verifier) reread(ctx context.Context, recordID string) VerificationResult {
	record, err := v.store.GetStatus(ctx, recordID)
	result := v.toResult(record, err, "")
	if result.RecordID == "" {
		result.RecordID = recordID
	}
	return result
}

func (v *Verifier) toResult(record *models.DeliveryRecord, err error, correlationID string) VerificationResult {
	if err != nil {
		v.logger.Warn().
			Err(err).
			Str("correlation_id", correlationID).
			Msg("Store lookup failed, delivery status unknown")
		return VerificationResult{Status: models.DeliveryStatusUnknown}
	}
	if record == nil {
		return VerificationResult{Status: models.DeliveryStatusUnknown}
	}

	status := record.Status
	if status == "" {
		status = record.Classify()
	}
	return VerificationResult{Status: status, RecordID: record.RecordID}
}

// sleepContext waits for d or until ctx is done. Non-positive durations
// return immediately unless ctx is already done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
