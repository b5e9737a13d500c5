/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/slotwarden/internal/engine"
	"github.com/friendsincode/slotwarden/internal/store"
)

var shiftCmd = &cobra.Command{
	Use:   "shift",
	Short: "Run a single slot shift pass and exit",
	Long: `Run one engine pass: reconcile stale claims, shift every due slot,
and lock credentials of freshly closed windows. Intended for cron-style
deployments that do not run the built-in scheduler.`,
	RunE: runShift,
}

var lockCheckCmd = &cobra.Command{
	Use:   "lock-check",
	Short: "Run a single lock pass and exit",
	Long:  "Scan slot windows and lock every open credential whose window has closed.",
	RunE:  runLockCheck,
}

func init() {
	rootCmd.AddCommand(shiftCmd)
	rootCmd.AddCommand(lockCheckCmd)
}

func newEngine() (*engine.Engine, error) {
	if err := loadConfig(); err != nil {
		return nil, err
	}
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	client, err := store.New(store.Config{
		BaseURL: cfg.StoreURL,
		Secret:  cfg.ProxySecret,
		Timeout: cfg.StoreTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create store client: %w", err)
	}

	return engine.New(client, nil, logger), nil
}

func runShift(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	eng.Shift(cmd.Context())
	logger.Info().Msg("shift pass finished")
	return nil
}

func runLockCheck(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	locked := eng.Lock(cmd.Context())
	logger.Info().Int("locked", locked).Msg("lock pass finished")
	return nil
}
