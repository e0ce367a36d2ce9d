// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package main

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/courier/internal/api"
	"github.com/tomtom215/courier/internal/checkpoint"
	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/delivery"
	"github.com/tomtom215/courier/internal/eventbus"
	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/resilience"
	"github.com/tomtom215/courier/internal/store"
	"github.com/tomtom215/courier/internal/supervisor"
	"github.com/tomtom215/courier/internal/supervisor/services"
	"github.com/tomtom215/courier/internal/sync"
	ws "github.com/tomtom215/courier/internal/websocket"
)

// busBufferSize is the per-subscriber buffer of the in-process event bus.
const busBufferSize = 256

// app holds every component main builds. Fields are nil when the matching
// feature is disabled.
type app struct {
	store      *store.ChatDB
	breakers   *resilience.BreakerRegistry
	engine     *delivery.Engine
	checkpoint *checkpoint.BadgerStore
	bus        *eventbus.Bus
	hub        *ws.Hub
	manager    *sync.Manager
	server     *http.Server
}

func breakerConfig(cfg *config.BreakerConfig) resilience.BreakerConfig {
	out := resilience.DefaultBreakerConfig()
	if cfg.FailureThreshold > 0 {
		out.FailureThreshold = uint32(cfg.FailureThreshold) //nolint:gosec // bounded by validation
	}
	if cfg.ResetTimeout > 0 {
		out.ResetTimeout = cfg.ResetTimeout
	}
	return out
}

func retryPolicy(cfg *config.RetryConfig) resilience.RetryPolicy {
	policy := resilience.DefaultRetryPolicy()
	if cfg.Attempts > 0 {
		policy.Attempts = cfg.Attempts
	}
	if cfg.BaseDelay > 0 {
		policy.BaseDelay = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		policy.MaxDelay = cfg.MaxDelay
	}
	if cfg.MaxJitter > 0 {
		policy.MaxJitter = cfg.MaxJitter
	}
	return policy
}

func fallbackConfig(cfg *config.FallbackConfig) delivery.FallbackConfig {
	return delivery.FallbackConfig{
		MaxPerRecipient: cfg.MaxPerRecipient,
		ResetInterval:   cfg.ResetInterval,
	}
}

// writeTimeout covers the slowest send: every primary attempt with its
// backoff, both media verification waits, then every secondary attempt.
func writeTimeout(cfg *config.Config) time.Duration {
	policy := retryPolicy(&cfg.Retry)
	return cfg.Server.Timeout +
		retryBudget(cfg.Primary.Timeout, policy) +
		cfg.Verifier.MediaSettleDelay +
		cfg.Verifier.MediaRecheckDelay +
		retryBudget(cfg.Secondary.Timeout, policy)
}

// retryBudget is the longest one channel can spend under policy.
func retryBudget(timeout time.Duration, policy resilience.RetryPolicy) time.Duration {
	total := time.Duration(policy.Attempts) * timeout
	noJitter := policy
	noJitter.MaxJitter = 0
	for attempt := 0; attempt < policy.Attempts-1; attempt++ {
		total += noJitter.Backoff(attempt) + policy.MaxJitter
	}
	return total
}

// buildEngine assembles the send path. The store is optional; without it
// verification is skipped and every accepted send is unconfirmed.
func buildEngine(cfg *config.Config, chatDB *store.ChatDB, breakers *resilience.BreakerRegistry, logger zerolog.Logger) *delivery.Engine {
	primary := delivery.NewIMessageChannel(&cfg.Primary, nil)

	var secondary delivery.Channel
	if cfg.Secondary.Enabled {
		secondary = delivery.NewSMSChannel(&cfg.Secondary)
	}

	executor := delivery.NewExecutor(delivery.NewChannelSet(primary, secondary), breakers, retryPolicy(&cfg.Retry), logger)

	var verifier *delivery.Verifier
	if cfg.Verifier.Enabled && chatDB != nil {
		verifier = delivery.NewVerifier(chatDB, delivery.VerifierConfigFrom(&cfg.Verifier), logger)
	}

	coordinator := delivery.NewCoordinator(executor, fallbackConfig(&cfg.Fallback), logger)
	return delivery.NewEngine(executor, verifier, coordinator, logger)
}

// buildSync creates the synchronizer and its cursor store.
func buildSync(cfg *config.Config, chatDB *store.ChatDB, bus *eventbus.Bus, logger zerolog.Logger) (*sync.Manager, *checkpoint.BadgerStore, error) {
	cursors, err := checkpoint.Open(&cfg.Checkpoint, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open checkpoint: %w", err)
	}

	resolver, err := sync.NewPathResolver(cfg.Sync.AttachmentRoots)
	if err != nil {
		_ = cursors.Close()
		return nil, nil, fmt.Errorf("attachment roots: %w", err)
	}

	manager, err := sync.NewManager(&cfg.Sync, sync.Dependencies{
		Source:    chatDB,
		Cursors:   cursors,
		Publisher: bus,
		Resolver:  resolver,
		WatchPath: chatDB.Path(),
		Logger:    logger,
	})
	if err != nil {
		_ = cursors.Close()
		return nil, nil, fmt.Errorf("create sync manager: %w", err)
	}
	return manager, cursors, nil
}

// build opens the store and wires every component.
func build(cfg *config.Config) (*app, error) {
	logger := logging.Logger()
	a := &app{
		breakers: resilience.NewBreakerRegistry(breakerConfig(&cfg.Breaker)),
		bus:      eventbus.New(busBufferSize, logging.WithComponent("eventbus")),
		hub:      ws.NewHub(),
	}

	chatDB, err := store.Open(&cfg.Store, a.breakers)
	if err != nil {
		// Sends still work without the store; they are just never verified.
		logger.Warn().Err(err).Str("path", cfg.Store.ChatDBPath).Msg("Chat database unavailable, verification and sync disabled")
	} else {
		a.store = chatDB
	}

	a.engine = buildEngine(cfg, a.store, a.breakers, logging.WithComponent("delivery"))

	deps := api.Dependencies{
		Sender:   a.engine,
		Breakers: a.breakers,
		Clients:  a.hub,
	}
	if cfg.Sync.Enabled && a.store != nil {
		a.manager, a.checkpoint, err = buildSync(cfg, a.store, a.bus, logging.WithComponent("sync"))
		if err != nil {
			a.close()
			return nil, err
		}
		deps.Sync = a.manager
		deps.Correlations = a.manager.Correlator()
	}

	handler, err := api.NewHandler(deps)
	if err != nil {
		a.close()
		return nil, err
	}
	router := api.NewRouter(handler, api.NewChiMiddlewareFromServer(&cfg.Server), ws.NewHandler(a.hub, cfg.Server.AllowedOrigins))

	a.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      writeTimeout(cfg),
		IdleTimeout:       2 * time.Minute,
	}
	return a, nil
}

// supervise registers the long-running services with tree.
func (a *app) supervise(tree *supervisor.SupervisorTree, cfg *config.Config) {
	if a.manager != nil {
		tree.AddDataService(services.NewSyncService(a.manager))
	}
	tree.AddMessagingService(services.NewWebSocketHubService(a.hub))
	tree.AddMessagingService(eventbus.NewForwarder(a.bus, a.hub, "bus-to-websocket", logging.WithComponent("forwarder")))
	tree.AddAPIService(services.NewHTTPServerService(a.server, cfg.Server.ShutdownTimeout))
}

// close releases resources in reverse order of creation.
func (a *app) close() {
	if a.checkpoint != nil {
		if err := a.checkpoint.Close(); err != nil {
			logging.Err(err).Msg("Error closing checkpoint store")
		}
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			logging.Err(err).Msg("Error closing event bus")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Err(err).Msg("Error closing chat database")
		}
	}
}
