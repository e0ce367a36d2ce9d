// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/courier/internal/logging"
)

func TestResponseWriter(t *testing.T) {
	tests := []struct {
		name        string
		write       func(rw *ResponseWriter)
		wantCode    int
		wantSuccess bool
		wantError   string
	}{
		{"success", func(rw *ResponseWriter) { rw.Success("ok") }, http.StatusOK, true, ""},
		{"created", func(rw *ResponseWriter) { rw.Created("ok") }, http.StatusCreated, true, ""},
		{"status accepted", func(rw *ResponseWriter) { rw.Status(http.StatusAccepted, "ok") }, http.StatusAccepted, true, ""},
		{"status unavailable", func(rw *ResponseWriter) { rw.Status(http.StatusServiceUnavailable, "x") }, http.StatusServiceUnavailable, false, ""},
		{"bad request", func(rw *ResponseWriter) { rw.BadRequest("bad") }, http.StatusBadRequest, false, ErrCodeBadRequest},
		{"validation", func(rw *ResponseWriter) { rw.ValidationError("bad", nil) }, http.StatusBadRequest, false, ErrCodeValidation},
		{"too many", func(rw *ResponseWriter) { rw.TooManyRequests("slow down") }, http.StatusTooManyRequests, false, ErrCodeTooManyRequests},
		{"internal", func(rw *ResponseWriter) { rw.InternalError("oops") }, http.StatusInternalServerError, false, ErrCodeInternalError},
		{"unavailable", func(rw *ResponseWriter) { rw.ServiceUnavailable("down") }, http.StatusServiceUnavailable, false, ErrCodeServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(logging.ContextWithRequestID(req.Context(), "req-1"))
			rec := httptest.NewRecorder()

			tt.write(NewResponseWriter(rec, req))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}

			var resp APIResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Success != tt.wantSuccess {
				t.Errorf("success = %v", resp.Success)
			}
			if resp.Meta == nil || resp.Meta.RequestID != "req-1" || resp.Meta.Timestamp.IsZero() {
				t.Errorf("meta = %+v", resp.Meta)
			}
			if tt.wantError == "" {
				if resp.Error != nil {
					t.Errorf("unexpected error %+v", resp.Error)
				}
				return
			}
			if resp.Error == nil || resp.Error.Code != tt.wantError {
				t.Errorf("error = %+v, want %s", resp.Error, tt.wantError)
			}
		})
	}
}
