// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package config

import "time"

// Config holds all application configuration loaded from defaults, an optional
// YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any mapped setting
//
// Configuration Categories:
//
//  1. Delivery:
//     - Primary: iMessage channel driven through osascript
//     - Secondary: HTTP SMS gateway used for fallback
//     - Retry, Breaker: channel resilience
//     - Verifier: settle delays and lookup window
//     - Fallback: per-recipient fallback limit
//
//  2. Synchronization:
//     - Store: the read-only chat database
//     - Sync: triggers, batching, dedup, correlation
//     - Checkpoint: cursor persistence
//
//  3. Surface & Observability:
//     - Server: HTTP API and websocket
//     - Logging: Log levels and output formats
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Primary    PrimaryConfig    `koanf:"primary"`
	Secondary  SecondaryConfig  `koanf:"secondary"`
	Retry      RetryConfig      `koanf:"retry"`
	Breaker    BreakerConfig    `koanf:"breaker"`
	Verifier   VerifierConfig   `koanf:"verifier"`
	Fallback   FallbackConfig   `koanf:"fallback"`
	Sync       SyncConfig       `koanf:"sync"`
	Store      StoreConfig      `koanf:"store"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// PrimaryConfig configures the iMessage channel.
//
// Environment Variables:
//   - OSASCRIPT_PATH: Path to the osascript binary (default: /usr/bin/osascript)
//   - PRIMARY_SERVICE: Messages service name (default: iMessage)
//   - PRIMARY_TIMEOUT: Upper bound for one script run (default: 30s)
type PrimaryConfig struct {
	OsascriptPath string        `koanf:"osascript_path"`
	Service       string        `koanf:"service"`
	Timeout       time.Duration `koanf:"timeout"`
}

// SecondaryConfig configures the SMS gateway used as the fallback channel.
type SecondaryConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	APIKey        string        `koanf:"api_key"`
	Sender        string        `koanf:"sender"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"` // Client-side pacing of gateway calls
	Burst         int           `koanf:"burst"`
}

// RetryConfig controls retries of transient channel errors.
type RetryConfig struct {
	Attempts  int           `koanf:"attempts"`
	BaseDelay time.Duration `koanf:"base_delay"`
	MaxDelay  time.Duration `koanf:"max_delay"`
	MaxJitter time.Duration `koanf:"max_jitter"`
}

// BreakerConfig controls the per-operation circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `koanf:"failure_threshold"`
	ResetTimeout     time.Duration `koanf:"reset_timeout"`
}

// VerifierConfig holds the delivery verification timings. They are tuned to
// how quickly the message store reflects a send, not guaranteed thresholds.
type VerifierConfig struct {
	Enabled           bool          `koanf:"enabled"`
	TextSettleDelay   time.Duration `koanf:"text_settle_delay"`
	MediaSettleDelay  time.Duration `koanf:"media_settle_delay"`
	MediaRecheckDelay time.Duration `koanf:"media_recheck_delay"`
	LookupWindow      time.Duration `koanf:"lookup_window"`
}

// FallbackConfig limits fallbacks to the secondary channel.
type FallbackConfig struct {
	MaxPerRecipient int           `koanf:"max_per_recipient"`
	ResetInterval   time.Duration `koanf:"reset_interval"`
}

// SyncConfig controls the message synchronizer.
type SyncConfig struct {
	Enabled              bool          `koanf:"enabled"`
	PollInterval         time.Duration `koanf:"poll_interval"`
	Debounce             time.Duration `koanf:"debounce"`
	BatchLimit           int           `koanf:"batch_limit"`
	RecencyCapacity      int           `koanf:"recency_capacity"`
	Concurrency          int           `koanf:"concurrency"`
	RefetchAttempts      int           `koanf:"refetch_attempts"`
	RefetchDelay         time.Duration `koanf:"refetch_delay"`
	RefetchMaxAge        time.Duration `koanf:"refetch_max_age"`
	CorrelationTolerance time.Duration `koanf:"correlation_tolerance"`
	CorrelationTTL       time.Duration `koanf:"correlation_ttl"`
	AttachmentRoots      []string      `koanf:"attachment_roots"` // Directories attachments may be served from
}

// StoreConfig locates the chat database.
type StoreConfig struct {
	ChatDBPath  string        `koanf:"chat_db_path"`
	BusyTimeout time.Duration `koanf:"busy_timeout"`
}

// CheckpointConfig controls where the sync cursor is persisted.
type CheckpointConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"` // Keep the cursor in memory only (tests, throwaway runs)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	AllowedOrigins  []string      `koanf:"allowed_origins"` // Browser origins for CORS and websocket; "*" allows any
	SendRateLimit   int           `koanf:"send_rate_limit"`
	SendRateWindow  time.Duration `koanf:"send_rate_window"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// Load reads configuration using LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
