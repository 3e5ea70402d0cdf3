// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

// Package config loads and validates the Rewatched configuration via Koanf
// v2 with layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"time"
)

// Config is the root configuration for the Rewatched server.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Tautulli   TautulliConfig   `koanf:"tautulli"`
	Overseerr  OverseerrConfig  `koanf:"overseerr"`
	Database   DatabaseConfig   `koanf:"database"`
	Stats      StatsConfig      `koanf:"stats"`
	Generation GenerationConfig `koanf:"generation"`
	Email      EmailConfig      `koanf:"email"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// BaseURL is the externally reachable URL used when building tokenized
	// report links for emails (e.g. https://rewatched.example.com).
	BaseURL string `koanf:"base_url"`

	Environment string `koanf:"environment"` // development or production
}

// TautulliConfig configures the watch-history source.
type TautulliConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`

	// PageSize is the number of history rows fetched per request.
	PageSize int `koanf:"page_size"`

	// RatePerSecond/RateBurst bound outbound request rate so a large
	// generation run does not starve Tautulli's own UI.
	RatePerSecond float64 `koanf:"rate_per_second"`
	RateBurst     int     `koanf:"rate_burst"`
}

// OverseerrConfig configures the optional request-service metadata source.
type OverseerrConfig struct {
	Enabled bool          `koanf:"enabled"`
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig configures the embedded DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// StatsConfig holds the aggregation engine knobs. These are threaded into
// the engine as an explicit options value; aggregation code never reads
// the environment.
type StatsConfig struct {
	BingeGap      time.Duration `koanf:"binge_gap"`
	TopContentCap int           `koanf:"top_content_cap"`
	TopTagCap     int           `koanf:"top_tag_cap"`
	MaxFunFacts   int           `koanf:"max_fun_facts"`

	// Timezone is the IANA zone used to bucket events into calendar days.
	// Empty means UTC.
	Timezone string `koanf:"timezone"`
}

// GenerationConfig configures the batch orchestrator.
type GenerationConfig struct {
	// Workers bounds how many users are fetched and aggregated concurrently.
	Workers int `koanf:"workers"`

	// FetchRetries/FetchRetryDelay control history fetch retry backoff.
	FetchRetries    int           `koanf:"fetch_retries"`
	FetchRetryDelay time.Duration `koanf:"fetch_retry_delay"`

	// TokenTTL is the lifetime of report share tokens. Zero means the
	// tokens never expire.
	TokenTTL time.Duration `koanf:"token_ttl"`
}

// EmailConfig configures SMTP delivery of report emails.
type EmailConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Host     string        `koanf:"host"`
	Port     int           `koanf:"port"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	From     string        `koanf:"from"`
	StartTLS bool          `koanf:"starttls"`
	Timeout  time.Duration `koanf:"timeout"`
}

// SecurityConfig configures admin authentication and public rate limits.
type SecurityConfig struct {
	// JWTSecret signs admin session tokens. 32+ characters required in
	// production.
	JWTSecret string `koanf:"jwt_secret"`

	AdminUsername string `koanf:"admin_username"`

	// AdminPasswordHash is a bcrypt hash. A plaintext AdminPassword is
	// accepted for development and hashed at load time.
	AdminPasswordHash string        `koanf:"admin_password_hash"`
	AdminPassword     string        `koanf:"admin_password"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`

	// Rate limit applied to the anonymous share-token endpoint.
	ShareRateLimit  int           `koanf:"share_rate_limit"`
	ShareRateWindow time.Duration `koanf:"share_rate_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before the config
// file and environment overrides.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8585,
			Timeout:     30 * time.Second,
			BaseURL:     "http://localhost:8585",
			Environment: "development",
		},
		Tautulli: TautulliConfig{
			Timeout:       30 * time.Second,
			PageSize:      500,
			RatePerSecond: 4,
			RateBurst:     8,
		},
		Overseerr: OverseerrConfig{
			Enabled: false,
			Timeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/rewatched.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Stats: StatsConfig{
			BingeGap:      4 * time.Hour,
			TopContentCap: 10,
			TopTagCap:     5,
			MaxFunFacts:   6,
			Timezone:      "",
		},
		Generation: GenerationConfig{
			Workers:         4,
			FetchRetries:    5,
			FetchRetryDelay: 2 * time.Second,
			TokenTTL:        0,
		},
		Email: EmailConfig{
			Enabled:  false,
			Port:     587,
			StartTLS: true,
			Timeout:  30 * time.Second,
		},
		Security: SecurityConfig{
			SessionTimeout:  24 * time.Hour,
			ShareRateLimit:  60,
			ShareRateWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
