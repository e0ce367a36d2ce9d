// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/courier/config.yaml",
	"/etc/courier/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Primary: PrimaryConfig{
			OsascriptPath: "/usr/bin/osascript",
			Service:       "iMessage",
			Timeout:       30 * time.Second,
		},
		Secondary: SecondaryConfig{
			Enabled:       false, // No fallback transport unless a gateway is configured
			URL:           "",
			APIKey:        "",
			Sender:        "",
			Timeout:       15 * time.Second,
			RatePerSecond: 1,
			Burst:         1,
		},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: time.Second,
			MaxDelay:  30 * time.Second,
			MaxJitter: time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     60 * time.Second,
		},
		Verifier: VerifierConfig{
			Enabled:           true,
			TextSettleDelay:   3500 * time.Millisecond,
			MediaSettleDelay:  8 * time.Second,
			MediaRecheckDelay: 7 * time.Second,
			LookupWindow:      10 * time.Second,
		},
		Fallback: FallbackConfig{
			MaxPerRecipient: 3,
			ResetInterval:   time.Hour,
		},
		Sync: SyncConfig{
			Enabled:              true,
			PollInterval:         5 * time.Second,
			Debounce:             500 * time.Millisecond,
			BatchLimit:           200,
			RecencyCapacity:      5000,
			Concurrency:          5,
			RefetchAttempts:      3,
			RefetchDelay:         2 * time.Second,
			RefetchMaxAge:        5 * time.Minute,
			CorrelationTolerance: 5 * time.Second,
			CorrelationTTL:       2 * time.Minute,
			AttachmentRoots:      []string{"~/Library/Messages/Attachments"},
		},
		Store: StoreConfig{
			ChatDBPath:  "~/Library/Messages/chat.db",
			BusyTimeout: 5 * time.Second,
		},
		Checkpoint: CheckpointConfig{
			Path:     "/data/courier/checkpoint",
			InMemory: false,
		},
		Server: ServerConfig{
			Port:            8787,
			Host:            "127.0.0.1",
			Timeout:         30 * time.Second,
			AllowedOrigins:  []string{},
			SendRateLimit:   30,
			SendRateWindow:  time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.allowed_origins",
	"sync.attachment_roots",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so the process environment cannot pollute config.
var envMappings = map[string]string{
	// Primary channel
	"osascript_path":  "primary.osascript_path",
	"primary_service": "primary.service",
	"primary_timeout": "primary.timeout",

	// Secondary channel
	"sms_enabled":         "secondary.enabled",
	"sms_api_url":         "secondary.url",
	"sms_api_key":         "secondary.api_key",
	"sms_sender":          "secondary.sender",
	"sms_timeout":         "secondary.timeout",
	"sms_rate_per_second": "secondary.rate_per_second",
	"sms_burst":           "secondary.burst",

	// Retry
	"retry_attempts":   "retry.attempts",
	"retry_base_delay": "retry.base_delay",
	"retry_max_delay":  "retry.max_delay",
	"retry_max_jitter": "retry.max_jitter",

	// Circuit breaker
	"breaker_failure_threshold": "breaker.failure_threshold",
	"breaker_reset_timeout":     "breaker.reset_timeout",

	// Verifier
	"verifier_enabled":             "verifier.enabled",
	"verifier_text_settle_delay":   "verifier.text_settle_delay",
	"verifier_media_settle_delay":  "verifier.media_settle_delay",
	"verifier_media_recheck_delay": "verifier.media_recheck_delay",
	"verifier_lookup_window":       "verifier.lookup_window",

	// Fallback
	"fallback_max_per_recipient": "fallback.max_per_recipient",
	"fallback_reset_interval":    "fallback.reset_interval",

	// Sync
	"sync_enabled":               "sync.enabled",
	"sync_poll_interval":         "sync.poll_interval",
	"sync_debounce":              "sync.debounce",
	"sync_batch_limit":           "sync.batch_limit",
	"sync_recency_capacity":      "sync.recency_capacity",
	"sync_concurrency":           "sync.concurrency",
	"sync_refetch_attempts":      "sync.refetch_attempts",
	"sync_refetch_delay":         "sync.refetch_delay",
	"sync_refetch_max_age":       "sync.refetch_max_age",
	"sync_correlation_tolerance": "sync.correlation_tolerance",
	"sync_correlation_ttl":       "sync.correlation_ttl",
	"attachment_roots":           "sync.attachment_roots",

	// Store
	"chat_db_path":       "store.chat_db_path",
	"store_busy_timeout": "store.busy_timeout",

	// Checkpoint
	"checkpoint_path":      "checkpoint.path",
	"checkpoint_in_memory": "checkpoint.in_memory",

	// Server
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"ws_allowed_origins":    "server.allowed_origins",
	"send_rate_limit":       "server.send_rate_limit",
	"send_rate_window":      "server.send_rate_window",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - CHAT_DB_PATH -> store.chat_db_path
//   - SMS_API_URL -> secondary.url
//   - FALLBACK_MAX_PER_RECIPIENT -> fallback.max_per_recipient
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
