// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/metrics"
	"github.com/tomtom215/courier/internal/models"
)

// TopicNewMessage carries every event emitted by the synchronizer.
const TopicNewMessage = "messages.new"

// Metadata keys set on every message.
const (
	MetadataRecordID      = "record_id"
	MetadataDirection     = "direction"
	MetadataCorrelationID = "correlation_id"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("event bus is closed")

// Bus is the in-process publisher and subscriber for NewMessage events.
type Bus struct {
	pubsub *gochannel.GoChannel

	mu     sync.RWMutex
	closed bool
}

// New creates a bus. bufferSize bounds the per-subscriber output channel;
// zero uses 256.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(bufferSize int64, logger zerolog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	adapter := logging.NewWatermillAdapter(logger)
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            bufferSize,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		}, adapter),
	}
}

// PublishNewMessage implements the synchronizer's Publisher.
func (b *Bus) PublishNewMessage(ctx context.Context, msg models.NewMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal new message: %w", err)
	}

	wm := message.NewMessage(uuid.NewString(), payload)
	wm.Metadata.Set(MetadataRecordID, msg.RecordID)
	wm.Metadata.Set(MetadataDirection, string(msg.Direction))
	if msg.CorrelationID != "" {
		wm.Metadata.Set(MetadataCorrelationID, msg.CorrelationID)
	}
	wm.SetContext(ctx)

	if err := b.pubsub.Publish(TopicNewMessage, wm); err != nil {
		return fmt.Errorf("publish %s: %w", TopicNewMessage, err)
	}
	metrics.EventsPublished.WithLabelValues(TopicNewMessage).Inc()
	return nil
}

// Subscribe returns the raw message stream for topic. The channel closes
// when ctx is done or the bus is closed. Every message must be acked.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.pubsub.Subscribe(ctx, topic)
}

// Close stops the bus and closes every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.pubsub.Close()
}

// DecodeNewMessage parses a messages.new payload.
func DecodeNewMessage(m *message.Message) (models.NewMessage, error) {
	var msg models.NewMessage
	if err := json.Unmarshal(m.Payload, &msg); err != nil {
		return msg, fmt.Errorf("decode new message %s: %w", m.UUID, err)
	}
	return msg, nil
}
