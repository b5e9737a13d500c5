/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"context"
	"time"

	"github.com/friendsincode/slotwarden/internal/events"
	"github.com/friendsincode/slotwarden/internal/telemetry"
	"github.com/friendsincode/slotwarden/internal/timeutil"
)

// Shift advances every due slot's window by its recurrence period and writes
// the whole slot map back in one update. Stale claims are reconciled first,
// and a successful shift write triggers a lock pass. Every failure degrades
// to "did nothing this cycle"; nothing is surfaced to the caller.
func (e *Engine) Shift(ctx context.Context) {
	done := observe("shift")
	defer done()

	// Claims referencing already-closed windows must not survive into the
	// newly shifted window. A reconcile failure does not block the shift.
	e.Reconcile(ctx)

	now := e.now()

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		telemetry.EngineErrorsTotal.WithLabelValues("shift", "read").Inc()
		e.logger.Warn().Err(err).Msg("slot map read failed, skipping shift pass")
		return
	}
	if settings.Slots == nil {
		// Legacy single-slot shape; this engine is multi-slot only.
		e.logger.Debug().Msg("store has no slot map, skipping shift pass")
		return
	}
	if len(settings.Slots) == 0 {
		return
	}

	shifted := 0
	for id, slot := range settings.Slots {
		if !slot.Enabled {
			continue
		}

		// An absent or unparseable last_update reads as "now", so the
		// slot skips this run and shifts once a full period has elapsed
		// from here on.
		lastUpdate := now
		if t, err := timeutil.Parse(slot.LastUpdate); err == nil {
			lastUpdate = t
		}
		if now.Sub(lastUpdate) < shiftThreshold {
			continue
		}

		start, err := timeutil.Parse(slot.SlotStart)
		if err != nil {
			start = time.Date(now.Year(), now.Month(), now.Day(),
				fallbackStartHour, 0, 0, 0, timeutil.Zone)
			e.logger.Warn().Str("slot", id).Str("slot_start", slot.SlotStart).
				Msg("unparseable slot_start, using fallback window")
		}
		end, err := timeutil.Parse(slot.SlotEnd)
		if err != nil {
			end = start.Add(24 * time.Hour)
			e.logger.Warn().Str("slot", id).Str("slot_end", slot.SlotEnd).
				Msg("unparseable slot_end, using fallback window")
		}

		delta := slot.Frequency.ShiftDelta()
		slot.SlotStart = timeutil.Format(start.Add(delta))
		slot.SlotEnd = timeutil.Format(end.Add(delta))
		slot.LastUpdate = timeutil.Format(now)
		shifted++

		telemetry.SlotShiftsTotal.WithLabelValues(id, string(slot.Frequency)).Inc()
		e.logger.Info().
			Str("slot", id).
			Str("slot_start", slot.SlotStart).
			Str("slot_end", slot.SlotEnd).
			Dur("delta", delta).
			Msg("slot window shifted")
	}

	if shifted == 0 {
		return
	}

	if err := e.store.PatchSlots(ctx, settings); err != nil {
		telemetry.EngineErrorsTotal.WithLabelValues("shift", "write").Inc()
		e.logger.Error().Err(err).Int("shifted", shifted).
			Msg("slot map write failed, changes discarded")
		return
	}

	e.logger.Info().Int("shifted", shifted).Msg("slot map updated")
	e.publish(events.EventSlotShifted, events.Payload{"shifted": shifted})

	// A freshly shifted window may have closed the previous one; lock its
	// credentials in the same cycle instead of waiting for the next tick.
	e.Lock(ctx)
}
