// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package eventbus

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/courier/internal/models"
)

// Sink consumes decoded NewMessage events.
type Sink interface {
	HandleNewMessage(ctx context.Context, msg models.NewMessage) error
}

// errSubscriptionClosed ends Serve when the bus closes under it.
var errSubscriptionClosed = errors.New("new message subscription closed")

// Forwarder delivers bus events to a Sink.
type Forwarder struct {
	bus    *Bus
	sink   Sink
	name   string
	logger zerolog.Logger
}

// NewForwarder creates a forwarder named for its sink.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewForwarder(bus *Bus, sink Sink, name string, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		bus:    bus,
		sink:   sink,
		name:   name,
		logger: logger.With().Str("component", "forwarder").Str("sink", name).Logger(),
	}
}

// Serve implements suture.Service. It returns ctx.Err() on shutdown and an
// error if the subscription ends first, so the supervisor resubscribes.
func (f *Forwarder) Serve(ctx context.Context) error {
	messages, err := f.bus.Subscribe(ctx, TopicNewMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicNewMessage, err)
	}

	f.logger.Info().Msg("Forwarding new messages")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case wm, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errSubscriptionClosed
			}

			msg, err := DecodeNewMessage(wm)
			if err != nil {
				// A malformed payload will not decode on redelivery either.
				f.logger.Error().Err(err).Msg("Dropping undecodable event")
				wm.Ack()
				continue
			}

			if err := f.sink.HandleNewMessage(ctx, msg); err != nil {
				f.logger.Warn().Err(err).Str("record_id", msg.RecordID).Msg("Sink rejected event")
			}
			wm.Ack()
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (f *Forwarder) String() string {
	return "eventbus-forwarder-" + f.name
}
