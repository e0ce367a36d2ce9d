// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/courier/internal/models"
)

// HealthStatus is returned by GET /api/v1/health.
type HealthStatus struct {
	Status           string     `json:"status"`
	Uptime           float64    `json:"uptime_seconds"`
	SyncEnabled      bool       `json:"sync_enabled"`
	SyncRunning      bool       `json:"sync_running"`
	LastSyncAt       *time.Time `json:"last_sync_at,omitempty"`
	OpenBreakers     []string   `json:"open_breakers,omitempty"`
	WebSocketClients int        `json:"websocket_clients"`
}

// SyncStatus describes the synchronizer in GET /api/v1/status.
type SyncStatus struct {
	Running    bool       `json:"running"`
	Cursor     int64      `json:"cursor"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Breakers            []models.BreakerState           `json:"breakers"`
	Fallback            map[string]models.FallbackState `json:"fallback"`
	Sync                *SyncStatus                     `json:"sync,omitempty"`
	PendingCorrelations []models.PendingCorrelation     `json:"pending_correlations"`
}

// Health handles GET /api/v1/health. The service is degraded while a
// breaker is open or an enabled synchronizer is not running.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status: "healthy",
		Uptime: time.Since(h.startTime).Seconds(),
	}

	if h.sync != nil {
		health.SyncEnabled = true
		health.SyncRunning = h.sync.IsRunning()
		health.LastSyncAt = timePtr(h.sync.LastSyncTime())
		if !health.SyncRunning {
			health.Status = "degraded"
		}
	}

	for _, state := range h.breakerStates() {
		if state.Status == models.BreakerOpen {
			health.OpenBreakers = append(health.OpenBreakers, state.Name)
			health.Status = "degraded"
		}
	}

	if h.clients != nil {
		health.WebSocketClients = h.clients.GetClientCount()
	}

	NewResponseWriter(w, r).Success(health)
}

// HealthLive handles the liveness probe. It reports alive whenever the
// process can serve HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles the readiness probe: 503 while an enabled
// synchronizer is not running.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := h.sync == nil || h.sync.IsRunning()

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}
	NewResponseWriter(w, r).Status(statusCode, map[string]interface{}{
		"ready":  ready,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status := StatusResponse{
		Breakers:            h.breakerStates(),
		Fallback:            h.sender.FallbackStates(),
		PendingCorrelations: []models.PendingCorrelation{},
	}
	if status.Fallback == nil {
		status.Fallback = map[string]models.FallbackState{}
	}

	if h.sync != nil {
		status.Sync = &SyncStatus{
			Running:    h.sync.IsRunning(),
			Cursor:     h.sync.Cursor(),
			LastSyncAt: timePtr(h.sync.LastSyncTime()),
		}
	}
	if h.correlations != nil {
		status.PendingCorrelations = h.correlations.Pending()
	}

	NewResponseWriter(w, r).Success(status)
}

func (h *Handler) breakerStates() []models.BreakerState {
	if h.breakers == nil {
		return []models.BreakerState{}
	}
	return h.breakers.States()
}
