// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package metrics provides Prometheus metrics for the Courier delivery engine.

All collectors are registered on the default registry via promauto and are
exposed at /metrics:

	curl http://localhost:8787/metrics

# Available Metrics

Circuit breakers:
  - courier_circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - courier_circuit_breaker_state_transitions_total{name,from_state,to_state}
  - courier_circuit_breaker_requests_total{name,result}

Send pipeline:
  - courier_channel_attempts_total{channel,result}
  - courier_send_outcomes_total{kind,channel}
  - courier_verifications_total{status,phase}
  - courier_fallbacks_total{reason,result}

Synchronizer:
  - courier_sync_records_total{result}
  - courier_sync_cursor
  - courier_sync_duration_seconds
  - courier_pending_correlations

Store, bus and websocket:
  - courier_store_query_duration_seconds{operation}
  - courier_events_published_total{topic}
  - courier_websocket_clients
*/
package metrics
