/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	// Document store configuration
	StoreURL     string // Base URL of the document store (e.g., https://mydb.firebaseio.com)
	StoreTimeout time.Duration
	ProxySecret  string // Shared secret for the authenticated proxy endpoints

	// Built-in scheduler configuration
	SchedulerEnabled bool
	ShiftInterval    time.Duration
	LockInterval     time.Duration

	// Multi-instance configuration
	LeaderElectionEnabled bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	InstanceID            string

	// Snapshot cache for the proxy read endpoint
	SnapshotCacheTTL time.Duration

	// Log buffer capacity for the /logs endpoint
	LogBufferSize int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"SLOTWARDEN_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"SLOTWARDEN_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"SLOTWARDEN_HTTP_PORT"}, 8080),

		// REAL_DB_URL and PROXY_SECRET are the keys older deployments
		// used; they remain honored as fallbacks.
		StoreURL:     getEnvAny([]string{"SLOTWARDEN_STORE_URL", "REAL_DB_URL"}, ""),
		StoreTimeout: time.Duration(getEnvIntAny([]string{"SLOTWARDEN_STORE_TIMEOUT_SECONDS"}, 10)) * time.Second,
		ProxySecret:  getEnvAny([]string{"SLOTWARDEN_PROXY_SECRET", "PROXY_SECRET"}, ""),

		SchedulerEnabled: getEnvBoolAny([]string{"SLOTWARDEN_SCHEDULER_ENABLED"}, true),
		ShiftInterval:    time.Duration(getEnvIntAny([]string{"SLOTWARDEN_SHIFT_INTERVAL_MINUTES"}, 60)) * time.Minute,
		LockInterval:     time.Duration(getEnvIntAny([]string{"SLOTWARDEN_LOCK_INTERVAL_MINUTES"}, 1)) * time.Minute,

		LeaderElectionEnabled: getEnvBoolAny([]string{"SLOTWARDEN_LEADER_ELECTION_ENABLED"}, false),
		RedisAddr:             getEnvAny([]string{"SLOTWARDEN_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword:         getEnvAny([]string{"SLOTWARDEN_REDIS_PASSWORD"}, ""),
		RedisDB:               getEnvIntAny([]string{"SLOTWARDEN_REDIS_DB"}, 0),
		InstanceID:            getEnvAny([]string{"SLOTWARDEN_INSTANCE_ID"}, ""),

		SnapshotCacheTTL: time.Duration(getEnvIntAny([]string{"SLOTWARDEN_SNAPSHOT_CACHE_TTL_SECONDS"}, 30)) * time.Second,

		LogBufferSize: getEnvIntAny([]string{"SLOTWARDEN_LOG_BUFFER_SIZE"}, 10000),

		TracingEnabled:    getEnvBoolAny([]string{"SLOTWARDEN_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"SLOTWARDEN_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"SLOTWARDEN_TRACING_SAMPLE_RATE"}, 1.0),
	}

	if cfg.StoreURL == "" {
		return nil, fmt.Errorf("SLOTWARDEN_STORE_URL or REAL_DB_URL must be provided")
	}

	if cfg.ProxySecret == "" {
		return nil, fmt.Errorf("SLOTWARDEN_PROXY_SECRET or PROXY_SECRET must be provided")
	}

	if cfg.ShiftInterval <= 0 || cfg.LockInterval <= 0 {
		return nil, fmt.Errorf("scheduler intervals must be positive")
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"REAL_DB_URL":  "use SLOTWARDEN_STORE_URL",
		"PROXY_SECRET": "use SLOTWARDEN_PROXY_SECRET",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
