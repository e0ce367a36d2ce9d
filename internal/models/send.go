// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package models

import "time"

// ChannelKind identifies a delivery transport.
type ChannelKind string

const (
	ChannelPrimary   ChannelKind = "primary"
	ChannelSecondary ChannelKind = "secondary"
)

// SendRequest is one logical outbound send. A fallback attempt reuses the
// same request and CorrelationID.
type SendRequest struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`

	// AttachmentRef is a local file path to send alongside (or instead of) Text.
	AttachmentRef string `json:"attachment_ref,omitempty"`

	CorrelationID string `json:"correlation_id"`
}

// HasAttachment reports whether the request carries media.
func (r *SendRequest) HasAttachment() bool {
	return r.AttachmentRef != ""
}

// ChannelAttemptResult is produced by the channel executor. Never persisted.
type ChannelAttemptResult struct {
	Success     bool
	ChannelKind ChannelKind
	RawError    error
	Attempts    int
}

// OutcomeKind summarizes how a send ended.
type OutcomeKind string

const (
	OutcomeDelivered            OutcomeKind = "delivered"
	OutcomeDeliveredViaFallback OutcomeKind = "delivered_via_fallback"
	OutcomeAcceptedUnconfirmed  OutcomeKind = "accepted_unconfirmed"
	OutcomeFailed               OutcomeKind = "failed"
	OutcomeRateLimited          OutcomeKind = "rate_limited"
)

// FallbackReason records why the secondary channel was considered.
type FallbackReason string

const (
	// FallbackReasonChannelError: the primary channel itself rejected the call.
	FallbackReasonChannelError FallbackReason = "channel_error"
	// FallbackReasonCircuitOpen: the primary channel breaker was open.
	FallbackReasonCircuitOpen FallbackReason = "circuit_open"
	// FallbackReasonDeliveryFailed: the store confirmed a failure on the first check.
	FallbackReasonDeliveryFailed FallbackReason = "delivery_failed"
	// FallbackReasonDeliveryTimeout: media confirmation never arrived.
	FallbackReasonDeliveryTimeout FallbackReason = "delivery_timeout"
	// FallbackReasonDeliveryFailedAfterRetry: media failure seen on the second check.
	FallbackReasonDeliveryFailedAfterRetry FallbackReason = "delivery_failed_after_retry"
)

// SendOutcome is the structured result returned to callers for every send.
// Expected failure modes are reported here, never as a bare error.
type SendOutcome struct {
	Success        bool           `json:"success"`
	Kind           OutcomeKind    `json:"kind"`
	ChannelUsed    ChannelKind    `json:"channel_used"`
	Status         DeliveryStatus `json:"status"`
	FallbackReason FallbackReason `json:"fallback_reason,omitempty"`
	RecordID       string         `json:"record_id,omitempty"`
	CorrelationID  string         `json:"correlation_id,omitempty"`
	Error          string         `json:"error,omitempty"`

	// Err keeps the typed error for errors.As checks by in-process callers.
	Err error `json:"-"`
}

// BreakerStatus is the state of one circuit breaker.
type BreakerStatus string

const (
	BreakerClosed   BreakerStatus = "closed"
	BreakerOpen     BreakerStatus = "open"
	BreakerHalfOpen BreakerStatus = "half_open"
)

// BreakerState is a snapshot of one named circuit breaker.
type BreakerState struct {
	Name                string        `json:"name"`
	Status              BreakerStatus `json:"status"`
	ConsecutiveFailures uint32        `json:"consecutive_failures"`
	LastFailureAt       *time.Time    `json:"last_failure_at,omitempty"`
}

// FallbackState is the per-recipient fallback window snapshot.
type FallbackState struct {
	AttemptCount int       `json:"attempt_count"`
	WindowStart  time.Time `json:"window_start"`
}
