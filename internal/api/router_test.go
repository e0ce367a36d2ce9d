// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRouter_Basics(t *testing.T) {
	srv := newTestServer(t, Dependencies{}, nil)

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
	}{
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/v1/nope", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/v1/status", http.StatusMethodNotAllowed},
		{"health without slash", http.MethodGet, "/api/v1/health", http.StatusOK},
		{"websocket not mounted", http.MethodGet, "/ws", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestRouter_HeadersAndRequestID(t *testing.T) {
	srv := newTestServer(t, Dependencies{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("X-Request-ID", "trace-7")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		"X-Request-ID":           "trace-7",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if !strings.Contains(rec.Body.String(), `"request_id":"trace-7"`) {
		t.Errorf("body missing request id: %s", rec.Body.String())
	}
}

func TestRouter_SendRateLimit(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.SendRateLimit = 2
	cfg.SendRateWindow = time.Hour
	srv := newTestServer(t, Dependencies{}, cfg)

	body := `{"recipient_id":"+15551234567","text":"hi"}`
	var codes []int
	for i := 0; i < 3; i++ {
		rec, _ := do(t, srv, http.MethodPost, "/api/v1/messages", body)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// Other routes are not limited.
	if rec, _ := do(t, srv, http.MethodGet, "/api/v1/status", ""); rec.Code != http.StatusOK {
		t.Errorf("status route = %d", rec.Code)
	}
}

func TestRouter_RateLimitDisabled(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.SendRateLimit = 1
	cfg.RateLimitDisabled = true
	srv := newTestServer(t, Dependencies{}, cfg)

	for i := 0; i < 3; i++ {
		if rec, _ := do(t, srv, http.MethodPost, "/api/v1/messages", `{"recipient_id":"+15551234567","text":"hi"}`); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}
}

func TestRouter_CORS(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = []string{"http://localhost:5173"}
	srv := newTestServer(t, Dependencies{}, cfg)

	tests := []struct {
		origin string
		want   string
	}{
		{"http://localhost:5173", "http://localhost:5173"},
		{"https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/messages", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouter_MountsWebsocket(t *testing.T) {
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	srv := NewRouter(newTestHandler(t, Dependencies{}), nil, ws).Setup()

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusSwitchingProtocols {
		t.Errorf("status = %d, want the websocket handler", rec.Code)
	}
}
