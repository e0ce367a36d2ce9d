// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package resilience

import (
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable is matched by every StoreUnavailableError.
var ErrStoreUnavailable = errors.New("message store unavailable")

// Error codes carried by channel errors.
const (
	CodeInvalidRecipient = "INVALID_RECIPIENT"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeAuthFailed       = "AUTH_FAILED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeTimeout          = "TIMEOUT"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeServerError      = "SERVER_ERROR"
	CodeScriptFailed     = "SCRIPT_FAILED"
	CodeUnknown          = "UNKNOWN"
)

// TransientChannelError is a retryable channel failure (I/O, timeout, 5xx).
type TransientChannelError struct {
	Channel string
	Code    string
	Err     error
}

func (e *TransientChannelError) Error() string {
	return fmt.Sprintf("%s channel transient error (%s): %v", e.Channel, e.Code, e.Err)
}

func (e *TransientChannelError) Unwrap() error { return e.Err }

// PermanentChannelError is a non-retryable channel failure
// (invalid recipient, malformed request, rejected credentials).
type PermanentChannelError struct {
	Channel string
	Code    string
	Err     error
}

func (e *PermanentChannelError) Error() string {
	return fmt.Sprintf("%s channel permanent error (%s): %v", e.Channel, e.Code, e.Err)
}

func (e *PermanentChannelError) Unwrap() error { return e.Err }

// NewTransient wraps err as a TransientChannelError.
func NewTransient(channel, code string, err error) error {
	return &TransientChannelError{Channel: channel, Code: code, Err: err}
}

// NewPermanent wraps err as a PermanentChannelError.
func NewPermanent(channel, code string, err error) error {
	return &PermanentChannelError{Channel: channel, Code: code, Err: err}
}

// StoreUnavailableError reports that the message store could not be read.
// The synchronizer skips the cycle; the verifier treats it as unknown.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("message store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStoreUnavailable) true.
func (e *StoreUnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// RateLimitExceededError reports a refused fallback.
type RateLimitExceededError struct {
	Recipient  string
	Attempts   int
	Window     time.Duration
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("fallback limit reached for %s: %d attempts within %s (retry after %s)",
		e.Recipient, e.Attempts, e.Window, e.RetryAfter.Round(time.Second))
}

// CircuitOpenError is returned without invoking the wrapped call.
type CircuitOpenError struct {
	Operation string
	Err       error
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q open: %v", e.Operation, e.Err)
}

func (e *CircuitOpenError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientChannelError.
func IsTransient(err error) bool {
	var target *TransientChannelError
	return errors.As(err, &target)
}

// IsPermanent reports whether err is (or wraps) a PermanentChannelError.
func IsPermanent(err error) bool {
	var target *PermanentChannelError
	return errors.As(err, &target)
}

// IsCircuitOpen reports whether err is (or wraps) a CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var target *CircuitOpenError
	return errors.As(err, &target)
}

// IsRateLimited reports whether err is (or wraps) a RateLimitExceededError.
func IsRateLimited(err error) bool {
	var target *RateLimitExceededError
	return errors.As(err, &target)
}

// ErrorCode extracts the channel error code, or CodeUnknown.
func ErrorCode(err error) string {
	var transient *TransientChannelError
	if errors.As(err, &transient) {
		return transient.Code
	}
	var permanent *PermanentChannelError
	if errors.As(err, &permanent) {
		return permanent.Code
	}
	return CodeUnknown
}
