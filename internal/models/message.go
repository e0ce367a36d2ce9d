// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package models

import (
	"strings"
	"time"
)

// Direction of a record relative to the local account.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// DeliveryStatus is the derived transport state of a DeliveryRecord.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusUnknown   DeliveryStatus = "unknown"
)

// IsFailure reports whether the status should trigger a fallback.
// Pending and unknown are not failures.
func (s DeliveryStatus) IsFailure() bool {
	return s == DeliveryStatusFailed
}

// IsResolved reports whether the status is terminal (delivered or failed).
func (s DeliveryStatus) IsResolved() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusFailed
}

// ClassifyDelivery derives a DeliveryStatus from the store's raw flags.
//
// The delivered flag takes precedence over the error code. A record that was
// sent but not delivered, or not yet sent without an error, is pending; media
// sends routinely sit in that state while uploading.
func ClassifyDelivery(isDelivered bool, errorCode int) DeliveryStatus {
	switch {
	case isDelivered:
		return DeliveryStatusDelivered
	case errorCode != 0:
		return DeliveryStatusFailed
	default:
		return DeliveryStatusPending
	}
}

// DeliveryRecord is one message row from the external message store.
// The engine only reads these.
type DeliveryRecord struct {
	// RecordID is the store's stable message identifier (GUID).
	RecordID string `json:"record_id"`

	// SequenceID is the store's monotonically increasing row id.
	SequenceID int64 `json:"sequence_id"`

	Direction Direction `json:"direction"`
	Text      string    `json:"text"`

	// Handle is the recipient for outbound records and the sender for inbound ones.
	Handle string `json:"handle"`

	SentAt      time.Time  `json:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	IsSent      bool `json:"is_sent"`
	IsDelivered bool `json:"is_delivered"`
	ErrorCode   int  `json:"error_code"`

	HasAttachment bool   `json:"has_attachment"`
	ServiceKind   string `json:"service_kind"`

	// Status is derived by ClassifyDelivery when the record is loaded.
	Status DeliveryStatus `json:"status"`

	// AttributedBody is the archived rich-text payload, used to recover
	// text when Text is empty.
	AttributedBody []byte `json:"-"`

	Attachments []AttachmentRef `json:"attachments,omitempty"`
}

// Classify recomputes Status from the record's flags and returns it.
func (r *DeliveryRecord) Classify() DeliveryStatus {
	r.Status = ClassifyDelivery(r.IsDelivered, r.ErrorCode)
	return r.Status
}

// AttachmentRef describes one attachment, either store-native or resolved.
type AttachmentRef struct {
	ID           string `json:"id"`
	Filename     string `json:"filename,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
	TransferName string `json:"transfer_name,omitempty"`
	TotalBytes   int64  `json:"total_bytes,omitempty"`

	// ResolvedURL is the consumer-facing reference set by the attachment resolver.
	ResolvedURL string `json:"resolved_url,omitempty"`

	// Error is set when resolution failed; the entry is still emitted.
	Error string `json:"error,omitempty"`
}

// NewMessage is the normalized event published by the synchronizer.
type NewMessage struct {
	RecordID      string          `json:"record_id"`
	SequenceID    int64           `json:"sequence_id"`
	Direction     Direction       `json:"direction"`
	Text          string          `json:"text"`
	Handle        string          `json:"handle"`
	Attachments   []AttachmentRef `json:"attachments"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	ServiceKind   string          `json:"service_kind,omitempty"`
}

// Emittable reports whether the event carries anything worth publishing.
func (m *NewMessage) Emittable() bool {
	return m.Text != "" || len(m.Attachments) > 0
}

// PendingCorrelation is an optimistic local send waiting for its store record.
type PendingCorrelation struct {
	CorrelationID string    `json:"correlation_id"`
	RecipientID   string    `json:"recipient_id"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

// SyncCursor is the synchronizer's resumption point.
type SyncCursor struct {
	LastProcessedSequenceID int64 `json:"last_processed_sequence_id"`
}

// NormalizeHandle canonicalizes a recipient handle for comparison: email
// handles are lowercased, phone numbers lose spaces, dashes, dots and
// parentheses.
func NormalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	if strings.Contains(handle, "@") {
		return strings.ToLower(handle)
	}
	return phoneSeparators.Replace(handle)
}

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
