// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

// Package delivery implements the send pipeline: channel execution under
// circuit breakers, delivery verification against the message store, and
// rate-limited fallback to the secondary channel.
//
// A send flows through the package like this:
//
//	Engine.Send
//	  -> Executor.Send(primary)        retry + breaker "channel-primary"
//	  -> Verifier.Verify               settle, look up, classify
//	  -> Coordinator.MaybeFallback     per-recipient window, then
//	       Executor.Send(secondary)    retry + breaker "channel-secondary"
//
// Expected failures never escape as bare errors. Every call to Engine.Send
// returns a models.SendOutcome.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/courier/internal/models"
)

// Channel is a transport that can hand a message off for delivery.
//
// Send must return a *resilience.TransientChannelError for failures worth
// retrying and a *resilience.PermanentChannelError for failures that will
// never succeed. A nil return only means the transport accepted the request.
// Calling Send twice with the same request must be safe.
type Channel interface {
	Kind() models.ChannelKind
	Send(ctx context.Context, req models.SendRequest) error
}

// ErrNoChannel is returned when a send targets a channel kind that was not
// registered with the executor.
var ErrNoChannel = errors.New("channel not configured")

// ChannelSet maps channel kinds to their implementations.
type ChannelSet struct {
	channels map[models.ChannelKind]Channel
}

// NewChannelSet registers the given channels. Nil entries are skipped so a
// disabled secondary channel can be passed through unchanged.
func NewChannelSet(channels ...Channel) *ChannelSet {
	set := &ChannelSet{channels: make(map[models.ChannelKind]Channel, len(channels))}
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		set.channels[ch.Kind()] = ch
	}
	return set
}

// Get returns the channel for kind.
func (s *ChannelSet) Get(kind models.ChannelKind) (Channel, error) {
	ch, ok := s.channels[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoChannel, kind)
	}
	return ch, nil
}

// Has reports whether a channel of kind is registered.
func (s *ChannelSet) Has(kind models.ChannelKind) bool {
	_, ok := s.channels[kind]
	return ok
}
