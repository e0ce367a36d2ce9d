// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/courier/internal/models"
)

// Sender runs the send pipeline.
type Sender interface {
	Send(ctx context.Context, req models.SendRequest) models.SendOutcome
	FallbackStates() map[string]models.FallbackState
}

// Correlations holds sends awaiting their synchronized record.
type Correlations interface {
	Register(p models.PendingCorrelation) error
	Pending() []models.PendingCorrelation
}

// BreakerReporter exposes circuit breaker snapshots.
type BreakerReporter interface {
	States() []models.BreakerState
}

// SyncController is the subset of the sync manager the API uses.
type SyncController interface {
	IsRunning() bool
	Cursor() int64
	LastSyncTime() time.Time
	TriggerSync(ctx context.Context) error
}

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	GetClientCount() int
}

// Dependencies wires the handler. Sender is required; leave Sync and
// Correlations nil when the synchronizer is disabled.
type Dependencies struct {
	Sender       Sender
	Correlations Correlations
	Breakers     BreakerReporter
	Sync         SyncController
	Clients      ClientCounter
}

// Handler serves the API endpoints.
//
// Handler methods are split across files:
//   - handlers_messages.go: send, correlations, manual sync
//   - handlers_health.go: health probes and status
type Handler struct {
	sender       Sender
	correlations Correlations
	breakers     BreakerReporter
	sync         SyncController
	clients      ClientCounter
	startTime    time.Time
}

// NewHandler creates the API handler.
func NewHandler(deps Dependencies) (*Handler, error) {
	if deps.Sender == nil {
		return nil, errors.New("api handler requires a sender")
	}
	return &Handler{
		sender:       deps.Sender,
		correlations: deps.Correlations,
		breakers:     deps.Breakers,
		sync:         deps.Sync,
		clients:      deps.Clients,
		startTime:    time.Now(),
	}, nil
}
