// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package eventbus carries NewMessage events from the synchronizer to their
consumers over an in-process watermill gochannel.

Topics:

  - messages.new: one JSON-encoded models.NewMessage per emitted record

Message Metadata:

  - record_id: store record id
  - direction: inbound or outbound
  - correlation_id: set when the record matched a pending send

The Forwarder subscribes to messages.new and hands every decoded event to a
Sink, such as the websocket hub. It implements suture.Service so the
supervisor restarts it if the subscription ends unexpectedly.
*/
package eventbus
