// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package models defines the data structures shared by the Courier delivery engine.

Key Components:

  - SendRequest: one logical outbound send (text and/or attachment)
  - ChannelAttemptResult: the result of driving a channel through retries
  - DeliveryRecord: a message row read from the external message store
  - SendOutcome: the structured result handed back to callers
  - NewMessage: the normalized event emitted by the synchronizer
  - FallbackState, BreakerState, PendingCorrelation, SyncCursor: engine state snapshots
  - APIResponse: the HTTP response envelope

Delivery status is never stored verbatim. It is derived from the store's
flags by ClassifyDelivery:

	status := models.ClassifyDelivery(rec.IsDelivered, rec.ErrorCode)

The delivered flag wins over any error code, a non-zero error code means
failed, and everything else is pending.
*/
package models
