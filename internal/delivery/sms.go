// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/resilience"
)

const smsChannelName = "sms"

// SMSChannel is the secondary channel: an HTTP SMS gateway that accepts a
// JSON message and answers 2xx once it has queued it.
type SMSChannel struct {
	client  *http.Client
	url     string
	apiKey  string
	sender  string
	limiter *rate.Limiter
}

// smsPayload is the gateway request body.
type smsPayload struct {
	To            string `json:"to"`
	From          string `json:"from,omitempty"`
	Body          string `json:"body"`
	CorrelationID string `json:"reference,omitempty"`
}

// smsErrorResponse is the gateway's error body.
type smsErrorResponse struct {
	Error string `json:"error"`
}

// NewSMSChannel creates the secondary channel from cfg.
func NewSMSChannel(cfg *config.SecondaryConfig) *SMSChannel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &SMSChannel{
		client: &http.Client{
			Timeout: timeout,
		},
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		sender:  cfg.Sender,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Kind returns models.ChannelSecondary.
func (c *SMSChannel) Kind() models.ChannelKind {
	return models.ChannelSecondary
}

// Send posts req to the gateway. Attachments are not forwarded; a request
// with no text cannot be sent over SMS.
func (c *SMSChannel) Send(ctx context.Context, req models.SendRequest) error {
	if strings.TrimSpace(req.RecipientID) == "" {
		return resilience.NewPermanent(smsChannelName, resilience.CodeInvalidRecipient,
			errors.New("recipient is required"))
	}
	if req.Text == "" {
		return resilience.NewPermanent(smsChannelName, resilience.CodeInvalidRequest,
			errors.New("SMS gateway requires message text"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return resilience.NewTransient(smsChannelName, resilience.CodeRateLimited,
			fmt.Errorf("waiting for send slot: %w", err))
	}

	payload := smsPayload{
		To:            req.RecipientID,
		From:          c.sender,
		Body:          req.Text,
		CorrelationID: req.CorrelationID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return resilience.NewPermanent(smsChannelName, resilience.CodeInvalidRequest,
			fmt.Errorf("failed to marshal payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return resilience.NewPermanent(smsChannelName, resilience.CodeInvalidRequest,
			fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "Courier/1.0")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return resilience.NewTransient(smsChannelName, classifyHTTPError(err),
			fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort read for error details

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code := classifyHTTPStatusCode(resp.StatusCode)
		cause := fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, gatewayErrorText(respBody))
		if isTransientHTTPError(code) {
			return resilience.NewTransient(smsChannelName, code, cause)
		}
		return resilience.NewPermanent(smsChannelName, code, cause)
	}

	return nil
}

// gatewayErrorText prefers the gateway's error field over the raw body.
func gatewayErrorText(body []byte) string {
	var parsed smsErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	return strings.TrimSpace(string(body))
}

// classifyHTTPError classifies a transport error into an error code.
func classifyHTTPError(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return resilience.CodeTimeout
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "refused") {
		return resilience.CodeConnectionFailed
	}

	return resilience.CodeUnknown
}

// classifyHTTPStatusCode classifies an HTTP status code into an error code.
func classifyHTTPStatusCode(code int) string {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return resilience.CodeAuthFailed
	case code == http.StatusTooManyRequests:
		return resilience.CodeRateLimited
	case code == http.StatusRequestTimeout:
		return resilience.CodeTimeout
	case code >= 500:
		return resilience.CodeServerError
	case code == http.StatusNotFound || code == http.StatusUnprocessableEntity:
		return resilience.CodeInvalidRecipient
	default:
		return resilience.CodeInvalidRequest
	}
}

// isTransientHTTPError returns true if the error is transient and can be retried.
func isTransientHTTPError(code string) bool {
	switch code {
	case resilience.CodeConnectionFailed, resilience.CodeTimeout, resilience.CodeRateLimited, resilience.CodeServerError:
		return true
	default:
		return false
	}
}
