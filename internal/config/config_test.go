/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SLOTWARDEN_STORE_URL", "https://mydb.example.com")
	t.Setenv("SLOTWARDEN_PROXY_SECRET", "hush")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.ShiftInterval != 60*time.Minute {
		t.Errorf("ShiftInterval = %v, want 60m", cfg.ShiftInterval)
	}
	if cfg.LockInterval != time.Minute {
		t.Errorf("LockInterval = %v, want 1m", cfg.LockInterval)
	}
	if !cfg.SchedulerEnabled {
		t.Error("SchedulerEnabled = false, want true")
	}
	if cfg.SnapshotCacheTTL != 30*time.Second {
		t.Errorf("SnapshotCacheTTL = %v, want 30s", cfg.SnapshotCacheTTL)
	}
	if len(cfg.LegacyEnvWarnings) != 0 {
		t.Errorf("LegacyEnvWarnings = %v, want none", cfg.LegacyEnvWarnings)
	}
}

func TestLoadRequiresStoreURL(t *testing.T) {
	t.Setenv("SLOTWARDEN_PROXY_SECRET", "hush")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without a store URL")
	}
}

func TestLoadRequiresProxySecret(t *testing.T) {
	t.Setenv("SLOTWARDEN_STORE_URL", "https://mydb.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without a proxy secret")
	}
}

func TestLoadLegacyKeys(t *testing.T) {
	t.Setenv("REAL_DB_URL", "https://legacy.example.com")
	t.Setenv("PROXY_SECRET", "legacy-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.StoreURL != "https://legacy.example.com" {
		t.Errorf("StoreURL = %q, want legacy value", cfg.StoreURL)
	}
	if cfg.ProxySecret != "legacy-secret" {
		t.Errorf("ProxySecret = %q, want legacy value", cfg.ProxySecret)
	}
	if len(cfg.LegacyEnvWarnings) != 2 {
		t.Fatalf("LegacyEnvWarnings = %v, want 2 warnings", cfg.LegacyEnvWarnings)
	}
	for _, w := range cfg.LegacyEnvWarnings {
		if !strings.Contains(w, "legacy env key") {
			t.Errorf("warning %q lacks legacy prefix", w)
		}
	}
}

func TestLoadNewKeysWinOverLegacy(t *testing.T) {
	t.Setenv("SLOTWARDEN_STORE_URL", "https://new.example.com")
	t.Setenv("REAL_DB_URL", "https://legacy.example.com")
	t.Setenv("SLOTWARDEN_PROXY_SECRET", "hush")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreURL != "https://new.example.com" {
		t.Errorf("StoreURL = %q, want new key to win", cfg.StoreURL)
	}
}

func TestLoadRejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("SLOTWARDEN_STORE_URL", "https://mydb.example.com")
	t.Setenv("SLOTWARDEN_PROXY_SECRET", "hush")
	t.Setenv("SLOTWARDEN_SHIFT_INTERVAL_MINUTES", "-5")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded with a negative shift interval")
	}
}
