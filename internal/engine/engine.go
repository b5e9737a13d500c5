/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package engine implements the slot lifecycle pipeline: clearing stale
// account claims, shifting recurring slot windows, and locking credentials
// whose owning window has closed. Each stage is a pure pass over a fresh
// store snapshot; the engine keeps no durable state between runs, so the
// next scheduled run is the only retry mechanism.
package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotwarden/internal/events"
	"github.com/friendsincode/slotwarden/internal/store"
	"github.com/friendsincode/slotwarden/internal/telemetry"
	"github.com/friendsincode/slotwarden/internal/timeutil"
)

const (
	// shiftThreshold is the minimum elapsed time since a slot's last shift
	// before it becomes due again, regardless of frequency.
	shiftThreshold = 24 * time.Hour

	// lockGraceMargin lets the lock pass treat a slot as closed slightly
	// before its nominal end, so a lock tick just ahead of the boundary
	// still fires.
	lockGraceMargin = 2 * time.Minute

	// fallbackStartHour anchors the substitute window for a slot whose
	// slot_start fails to parse: today at 09:00 civil time.
	fallbackStartHour = 9
)

// Engine runs the slot lifecycle stages against the document store.
type Engine struct {
	store  *store.Client
	bus    *events.Bus
	logger zerolog.Logger

	// now is sampled once per stage run so every decision inside a run
	// sees the same instant. Overridable in tests.
	now func() time.Time
}

// New creates an engine. The bus may be nil when no subscriber cares.
func New(st *store.Client, bus *events.Bus, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  st,
		bus:    bus,
		logger: logger.With().Str("component", "engine").Logger(),
		now:    timeutil.Now,
	}
}

// observe records a stage invocation and returns a completion callback for
// the duration histogram.
func observe(stage string) func() {
	telemetry.EngineRunsTotal.WithLabelValues(stage).Inc()
	start := time.Now()
	return func() {
		telemetry.EngineRunDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (e *Engine) publish(eventType events.EventType, payload events.Payload) {
	if e.bus != nil {
		e.bus.Publish(eventType, payload)
	}
}
