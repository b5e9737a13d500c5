/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler drives the engine on fixed intervals, standing in for
// the external cron that triggers the HTTP endpoints in other deployments.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotwarden/internal/engine"
)

const (
	defaultShiftInterval = time.Hour
	defaultLockInterval  = time.Minute
)

// Service runs periodic shift and lock passes.
type Service struct {
	engine        *engine.Engine
	logger        zerolog.Logger
	shiftInterval time.Duration
	lockInterval  time.Duration
}

// New constructs the scheduler service. Non-positive intervals fall back to
// hourly shifts and per-minute lock checks, mirroring a typical cron setup.
func New(eng *engine.Engine, shiftInterval, lockInterval time.Duration, logger zerolog.Logger) *Service {
	if shiftInterval <= 0 {
		shiftInterval = defaultShiftInterval
	}
	if lockInterval <= 0 {
		lockInterval = defaultLockInterval
	}
	return &Service{
		engine:        eng,
		logger:        logger.With().Str("component", "scheduler").Logger(),
		shiftInterval: shiftInterval,
		lockInterval:  lockInterval,
	}
}

// Run executes the scheduler loop until the context is cancelled. The shift
// tick subsumes a lock pass (it runs one after a successful write), so the
// standalone lock tick only covers windows closing between shifts.
func (s *Service) Run(ctx context.Context) error {
	shiftTicker := time.NewTicker(s.shiftInterval)
	defer shiftTicker.Stop()
	lockTicker := time.NewTicker(s.lockInterval)
	defer lockTicker.Stop()

	s.logger.Info().
		Dur("shift_interval", s.shiftInterval).
		Dur("lock_interval", s.lockInterval).
		Msg("scheduler loop started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler loop stopped")
			return ctx.Err()
		case <-shiftTicker.C:
			s.engine.Shift(ctx)
		case <-lockTicker.C:
			s.engine.Lock(ctx)
		}
	}
}
