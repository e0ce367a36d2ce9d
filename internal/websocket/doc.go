// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package websocket pushes NewMessage events to connected clients.

Key Components:

  - Hub: tracks clients and fans broadcasts out in connection order
  - Client: one connection with a read pump and a write pump
  - Handler: upgrades /ws requests and registers the client with the hub

The hub implements eventbus.Sink, so the bus forwarder feeds it directly.

Frames:

	{"type": "new_message", "data": {...models.NewMessage...}}
	{"type": "pong", "data": null}

Clients may send {"type": "ping"} and receive a pong. Protocol-level pings are
sent every 54s and a client that does not answer within 60s is dropped, as is
a client whose send buffer fills up.

Origins:

Requests without an Origin header are accepted, since responders are usually
local scripts. Browser requests must come from an origin in
server.allowed_origins.
*/
package websocket
