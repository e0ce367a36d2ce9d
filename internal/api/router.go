// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/courier/internal/middleware"
)

// Router assembles the HTTP surface.
type Router struct {
	handler    *Handler
	middleware *ChiMiddleware
	websocket  http.Handler
}

// NewRouter creates a router. websocket may be nil to omit /ws.
func NewRouter(handler *Handler, mw *ChiMiddleware, websocket http.Handler) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, middleware: mw, websocket: websocket}
}

// Setup configures all routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	h := router.handler
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(APISecurityHeaders())

		r.Route("/health", func(r chi.Router) {
			r.Get("/", h.Health)
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
		})

		r.With(router.middleware.RateLimitSend()).Post("/messages", h.SendMessage)

		r.Route("/correlations", func(r chi.Router) {
			r.Get("/", h.ListCorrelations)
			r.Post("/", h.RegisterCorrelation)
		})

		r.Get("/status", h.Status)
		r.Post("/sync", h.TriggerSync)
	})

	r.Handle("/metrics", promhttp.Handler())

	// Outside the metrics middleware; upgraded connections are long-lived.
	if router.websocket != nil {
		r.Get("/ws", router.websocket.ServeHTTP)
	}

	return r
}
