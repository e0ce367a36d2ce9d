// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validatePrimary,
		c.validateSecondary,
		c.validateRetry,
		c.validateBreaker,
		c.validateVerifier,
		c.validateFallback,
		c.validateSync,
		c.validateStore,
		c.validateCheckpoint,
		c.validateServer,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePrimary() error {
	if c.Primary.OsascriptPath == "" {
		return fmt.Errorf("OSASCRIPT_PATH is required")
	}
	if c.Primary.Service != "iMessage" && c.Primary.Service != "SMS" {
		return fmt.Errorf("PRIMARY_SERVICE must be iMessage or SMS")
	}
	if c.Primary.Timeout <= 0 {
		return fmt.Errorf("PRIMARY_TIMEOUT must be positive")
	}
	return nil
}

// validateSecondary validates the SMS gateway (only if enabled)
func (c *Config) validateSecondary() error {
	if !c.Secondary.Enabled {
		return nil
	}

	if c.Secondary.URL == "" {
		return fmt.Errorf("SMS_API_URL is required when SMS_ENABLED=true")
	}
	if err := validateEndpointURL(c.Secondary.URL, "SMS_API_URL"); err != nil {
		return fmt.Errorf("SMS_API_URL is invalid: %w", err)
	}
	if c.Secondary.APIKey == "" {
		return fmt.Errorf("SMS_API_KEY is required when SMS_ENABLED=true")
	}
	if containsPlaceholder(c.Secondary.APIKey) {
		return fmt.Errorf("SMS_API_KEY contains a placeholder value")
	}
	if c.Secondary.RatePerSecond <= 0 {
		return fmt.Errorf("SMS_RATE_PER_SECOND must be positive")
	}
	if c.Secondary.Burst < 1 {
		return fmt.Errorf("SMS_BURST must be at least 1")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.Attempts < 1 || c.Retry.Attempts > 10 {
		return fmt.Errorf("RETRY_ATTEMPTS must be between 1 and 10")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxJitter < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	if c.Breaker.ResetTimeout <= 0 {
		return fmt.Errorf("BREAKER_RESET_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateVerifier() error {
	v := c.Verifier
	if v.TextSettleDelay < 0 || v.MediaSettleDelay < 0 || v.MediaRecheckDelay < 0 {
		return fmt.Errorf("verifier delays must not be negative")
	}
	if v.LookupWindow <= 0 {
		return fmt.Errorf("VERIFIER_LOOKUP_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateFallback() error {
	if c.Fallback.MaxPerRecipient < 1 {
		return fmt.Errorf("FALLBACK_MAX_PER_RECIPIENT must be at least 1 (disable SMS_ENABLED to turn fallback off)")
	}
	if c.Fallback.ResetInterval <= 0 {
		return fmt.Errorf("FALLBACK_RESET_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateSync() error {
	if !c.Sync.Enabled {
		return nil
	}

	s := c.Sync
	if s.PollInterval <= 0 {
		return fmt.Errorf("SYNC_POLL_INTERVAL must be positive")
	}
	if s.Debounce < 0 {
		return fmt.Errorf("SYNC_DEBOUNCE must not be negative")
	}
	if s.BatchLimit < 1 {
		return fmt.Errorf("SYNC_BATCH_LIMIT must be at least 1")
	}
	if s.RecencyCapacity < s.BatchLimit {
		return fmt.Errorf("SYNC_RECENCY_CAPACITY (%d) must be at least SYNC_BATCH_LIMIT (%d)", s.RecencyCapacity, s.BatchLimit)
	}
	if s.Concurrency < 1 || s.Concurrency > 64 {
		return fmt.Errorf("SYNC_CONCURRENCY must be between 1 and 64")
	}
	if s.RefetchAttempts < 0 {
		return fmt.Errorf("SYNC_REFETCH_ATTEMPTS must not be negative")
	}
	if s.CorrelationTTL <= 0 {
		return fmt.Errorf("SYNC_CORRELATION_TTL must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.ChatDBPath == "" {
		return fmt.Errorf("CHAT_DB_PATH is required")
	}
	return nil
}

func (c *Config) validateCheckpoint() error {
	if !c.Checkpoint.InMemory && c.Checkpoint.Path == "" {
		return fmt.Errorf("CHECKPOINT_PATH is required unless CHECKPOINT_IN_MEMORY=true")
	}
	return nil
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.SendRateLimit < 1 {
		return fmt.Errorf("SEND_RATE_LIMIT must be at least 1")
	}
	if c.Server.SendRateWindow <= 0 {
		return fmt.Errorf("SEND_RATE_WINDOW must be positive")
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("WS_ALLOWED_ORIGINS must list explicit origins, wildcard is not allowed")
		}
	}
	return nil
}

// validLogLevels defines the allowed log levels
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns defines common placeholder patterns that indicate
// the user forgot to set a real value.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_API_KEY",
	"PLACEHOLDER",
	"EXAMPLE",
}

// containsPlaceholder checks if a value contains common placeholder patterns
func containsPlaceholder(value string) bool {
	upperValue := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upperValue, pattern) {
			return true
		}
	}
	return false
}
