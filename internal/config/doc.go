// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package config provides centralized configuration management for Courier.

Configuration is layered with Koanf v2: struct defaults, then an optional YAML
file, then environment variables. Only environment variables listed in the
mapping table are read.

# Config File

The file is located by CONFIG_PATH, then config.yaml, config.yml and
/etc/courier/config.yaml. Keys mirror the koanf struct tags:

	primary:
	  service: iMessage
	secondary:
	  enabled: true
	  url: https://sms.example.net/v1/messages
	  api_key: ${SMS_API_KEY}
	verifier:
	  text_settle_delay: 3.5s
	  media_settle_delay: 8s
	fallback:
	  max_per_recipient: 3
	  reset_interval: 1h

# Environment Variables

Delivery:
  - SMS_ENABLED, SMS_API_URL, SMS_API_KEY, SMS_SENDER: Secondary channel
  - RETRY_ATTEMPTS, RETRY_BASE_DELAY: Channel retry policy (default: 3, 1s)
  - BREAKER_FAILURE_THRESHOLD, BREAKER_RESET_TIMEOUT: (default: 5, 60s)
  - FALLBACK_MAX_PER_RECIPIENT, FALLBACK_RESET_INTERVAL: (default: 3, 1h)

Synchronization:
  - CHAT_DB_PATH: Chat database (default: ~/Library/Messages/chat.db)
  - SYNC_POLL_INTERVAL, SYNC_DEBOUNCE: Triggers (default: 5s, 500ms)
  - CHECKPOINT_PATH: Badger directory for the sync cursor

Server and logging:
  - HTTP_HOST, HTTP_PORT: Listen address (default: 127.0.0.1:8787)
  - WS_ALLOWED_ORIGINS: Comma-separated websocket origin allowlist
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Validation

Validate runs once per section and returns the first problem, naming the
environment variable that controls the offending value.
*/
package config
