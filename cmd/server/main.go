// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("chat_db", cfg.Store.ChatDBPath).
		Bool("secondary_enabled", cfg.Secondary.Enabled).
		Bool("verifier_enabled", cfg.Verifier.Enabled).
		Bool("sync_enabled", cfg.Sync.Enabled).
		Msg("Starting Courier")

	if !cfg.Secondary.Enabled {
		logging.Warn().Msg("Secondary channel disabled; failed primary sends will not fall back")
	}

	a, err := build(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize")
	}

	os.Exit(run(a, cfg))
}

// run supervises the app until SIGINT or SIGTERM and returns the exit code.
func run(a *app, cfg *config.Config) int {
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return 1
	}
	a.supervise(tree, cfg)

	logging.Info().Str("addr", a.server.Addr).Msg("Supervisor tree starting")
	errCh := tree.ServeBackground(ctx)

	code := 0
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, stopping services")
		// The channel receives exactly one value and is never closed.
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree stopped unexpectedly")
			code = 1
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("Courier stopped")
	return code
}
