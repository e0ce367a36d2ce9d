// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/courier/internal/models"
)

type fakeSender struct {
	mu       sync.Mutex
	outcome  models.SendOutcome
	requests []models.SendRequest
	onSend   func(models.SendRequest)
	fallback map[string]models.FallbackState
}

func (f *fakeSender) Send(_ context.Context, req models.SendRequest) models.SendOutcome {
	if f.onSend != nil {
		f.onSend(req)
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	outcome := f.outcome
	outcome.CorrelationID = req.CorrelationID
	return outcome
}

func (f *fakeSender) FallbackStates() map[string]models.FallbackState {
	return f.fallback
}

func (f *fakeSender) sent() []models.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SendRequest(nil), f.requests...)
}

type fakeCorrelations struct {
	mu      sync.Mutex
	pending []models.PendingCorrelation
	err     error
}

func (f *fakeCorrelations) Register(p models.PendingCorrelation) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, p)
	return nil
}

func (f *fakeCorrelations) Pending() []models.PendingCorrelation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PendingCorrelation{}, f.pending...)
}

type fakeBreakers []models.BreakerState

func (f fakeBreakers) States() []models.BreakerState { return f }

type fakeSync struct {
	running  bool
	cursor   int64
	lastSync time.Time
	err      error
	triggers int
}

func (f *fakeSync) IsRunning() bool         { return f.running }
func (f *fakeSync) Cursor() int64           { return f.cursor }
func (f *fakeSync) LastSyncTime() time.Time { return f.lastSync }

func (f *fakeSync) TriggerSync(context.Context) error {
	f.triggers++
	if f.err == nil {
		f.cursor++
		f.lastSync = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	}
	return f.err
}

type fakeClients int

func (f fakeClients) GetClientCount() int { return int(f) }

func newTestHandler(t *testing.T, deps Dependencies) *Handler {
	t.Helper()
	if deps.Sender == nil {
		deps.Sender = &fakeSender{outcome: delivered()}
	}
	h, err := NewHandler(deps)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h
}

func newTestServer(t *testing.T, deps Dependencies, mwCfg *ChiMiddlewareConfig) http.Handler {
	t.Helper()
	return NewRouter(newTestHandler(t, deps), NewChiMiddleware(mwCfg), nil).Setup()
}

func delivered() models.SendOutcome {
	return models.SendOutcome{
		Success:     true,
		Kind:        models.OutcomeDelivered,
		ChannelUsed: models.ChannelPrimary,
		Status:      models.DeliveryStatusDelivered,
		RecordID:    "rec-1",
	}
}

// decodedResponse mirrors APIResponse with raw data for per-test decoding.
type decodedResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
	Meta *APIMeta `json:"meta"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, decodedResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp decodedResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}
