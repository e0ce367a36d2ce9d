// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Command server runs the Courier message delivery engine.

Courier sends messages through the local Messages app, confirms delivery by
watching the Messages chat database, and falls back to an SMS gateway when
the primary channel fails or a send is not confirmed. New messages found in
the chat database are streamed to websocket subscribers.

# Components

	courier
	├── data-layer
	│   └── chat-sync         polls chat.db and reacts to WAL writes
	├── messaging-layer
	│   ├── websocket-hub     /ws subscribers
	│   └── bus-to-websocket  event bus forwarder
	└── api-layer
	    └── api-server        /api/v1, /metrics, /ws

The chat database is opened read-only. If it cannot be opened, sends still
go out but are reported as accepted_unconfirmed, and synchronization is
disabled.

# Configuration

Configuration is layered with Koanf v2: built-in defaults, then an optional
YAML file (CONFIG_PATH or ./config.yaml), then environment variables.
Common settings:

	CHAT_DB_PATH          chat database (default ~/Library/Messages/chat.db)
	SMS_ENABLED           enable the SMS gateway fallback
	SMS_API_URL           SMS gateway endpoint
	SYNC_ENABLED          stream new messages from the chat database
	CHECKPOINT_PATH       badger directory for the sync cursor
	HTTP_HOST, HTTP_PORT  listen address (default 127.0.0.1:8787)
	LOG_LEVEL, LOG_FORMAT zerolog level and json|console output

# Signals

SIGINT and SIGTERM stop the supervisor tree. The HTTP server drains for
HTTP_SHUTDOWN_TIMEOUT before the checkpoint store, event bus and chat
database are closed.
*/
package main
