// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

/*
Package services adapts courier components to suture.Service.

  - SyncService: Start/Stop lifecycle of sync.Manager
  - WebSocketHubService: websocket.Hub.RunWithContext
  - HTTPServerService: http.Server ListenAndServe/Shutdown with a drain timeout

eventbus.Forwarder implements suture.Service directly and needs no wrapper.

Each wrapper returns ctx.Err() after a requested shutdown and a wrapped
error on failure, which tells the supervisor to restart it.
*/
package services
