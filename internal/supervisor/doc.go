// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package supervisor runs courier's long-lived services under suture v4.

The tree has three layers that fail and restart independently:

	courier
	├── data-layer
	│   └── chat-sync         (sync.Manager: store polling, fsnotify, cursor checkpoints)
	├── messaging-layer
	│   ├── websocket-hub     (fan-out to /ws subscribers)
	│   └── bus-to-websocket  (eventbus.Forwarder from new_message to the hub)
	└── api-layer
	    └── api-server        (net/http server wrapping the chi router)

The send path is not supervised. delivery.Engine is called synchronously
from HTTP handlers and owns no goroutines of its own.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewSyncService(manager))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddMessagingService(forwarder)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	err = tree.Serve(ctx) // blocks until ctx is canceled

# Failure Handling

Each layer keeps a failure counter that decays over FailureDecay seconds.
Once it exceeds FailureThreshold the layer waits FailureBackoff before
restarting the failing service. Supervisor events are logged through
sutureslog, so restarts appear in the same JSON stream as the rest of the
process.

Any return from Serve while the tree is running schedules a restart, nil
included. Only suture.ErrDoNotRestart ends a service for good.

# Shutdown

Canceling the context passed to Serve stops every layer. Services that
ignore cancellation past ShutdownTimeout show up in UnstoppedServiceReport.
*/
package supervisor
