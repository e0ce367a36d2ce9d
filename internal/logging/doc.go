// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

// Package logging provides the zerolog-based structured logger used across Courier.
//
// A single global logger is configured once at startup:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
// Components log through the package helpers or a component child logger:
//
//	logging.Info().Str("recipient", r).Msg("Fallback invoked")
//	logger := logging.WithComponent("sync")
//
// Send paths attach the request correlation ID to the context so that every
// line emitted through Ctx carries it:
//
//	ctx = logging.ContextWithCorrelationID(ctx, req.CorrelationID)
//	logging.Ctx(ctx).Warn().Err(err).Msg("Primary channel failed")
//
// The HTTP request ID middleware stores a logger tagged with method and path
// via ContextWithLogger; Ctx starts from it when present.
//
// Always terminate an event chain with Msg or Send, otherwise nothing is written.
//
// SlogHandler adapts the logger to log/slog for the supervisor tree (sutureslog).
package logging
