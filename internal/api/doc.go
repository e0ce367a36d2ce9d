// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package api exposes the delivery engine over HTTP using the chi router.

Routes:

	GET  /api/v1/health          overall health
	GET  /api/v1/health/live     liveness probe
	GET  /api/v1/health/ready    readiness probe (503 while sync is down)
	POST /api/v1/messages        send a message and wait for its SendOutcome
	POST /api/v1/correlations    register a pending correlation
	GET  /api/v1/correlations    list pending correlations
	GET  /api/v1/status          breakers, fallback windows, sync cursor
	POST /api/v1/sync            run a sync cycle now
	GET  /metrics                Prometheus exposition
	GET  /ws                     websocket stream of new_message events

Every JSON response uses the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "VALIDATION_ERROR", "message": "..."}, "meta": {...}}

# Send Outcomes

POST /api/v1/messages blocks through verification, so its latency follows
the verifier settle delays. The outcome maps to a status code:

	delivered, delivered_via_fallback, accepted_unconfirmed  200
	rate_limited                                             429
	failed                                                   502

The full SendOutcome is returned in data on success and in error.details
otherwise.

# Middleware

Global: request ID, real IP, panic recovery, CORS (go-chi/cors) and
Prometheus request metrics. The send route is additionally limited per IP
by go-chi/httprate.
*/
package api
