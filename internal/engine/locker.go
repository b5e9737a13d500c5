/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"context"

	"github.com/friendsincode/slotwarden/internal/events"
	"github.com/friendsincode/slotwarden/internal/models"
	"github.com/friendsincode/slotwarden/internal/telemetry"
	"github.com/friendsincode/slotwarden/internal/timeutil"
)

// Lock flips locked from 0 to 1 on every open credential whose owning slot
// window has closed, within the grace margin. Each lock is an independent
// single-key patch; a failed patch is logged and the pass continues, so a
// partially locked slot is corrected by the next run. Returns the number of
// credentials locked this run.
func (e *Engine) Lock(ctx context.Context) int {
	done := observe("lock")
	defer done()

	now := e.now()

	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		telemetry.EngineErrorsTotal.WithLabelValues("lock", "read").Inc()
		e.logger.Warn().Err(err).Msg("slot map read failed, skipping lock pass")
		return 0
	}
	if len(settings.Slots) == 0 {
		return 0
	}

	tree, err := e.store.GetTree(ctx)
	if err != nil {
		telemetry.EngineErrorsTotal.WithLabelValues("lock", "read").Inc()
		e.logger.Warn().Err(err).Msg("tree read failed, skipping lock pass")
		return 0
	}
	if len(tree) == 0 {
		return 0
	}
	creds := tree.Credentials()

	locked := 0
	for slotID, slot := range settings.Slots {
		if !slot.Enabled {
			continue
		}
		end, err := timeutil.Parse(slot.SlotEnd)
		if err != nil {
			// Bad data never locks anything.
			e.logger.Warn().Str("slot", slotID).Str("slot_end", slot.SlotEnd).
				Msg("unparseable slot_end, skipping slot in lock pass")
			continue
		}
		// closed = now >= slot_end - grace margin
		if now.Before(end.Add(-lockGraceMargin)) {
			continue
		}

		for key, cred := range creds {
			if cred.BelongsToSlot != slotID || int(cred.Locked) != models.LockStateOpen {
				continue
			}
			if err := e.store.LockCredential(ctx, key); err != nil {
				telemetry.EngineErrorsTotal.WithLabelValues("lock", "write").Inc()
				e.logger.Warn().Err(err).Str("credential", key).
					Msg("credential lock failed, continuing")
				continue
			}
			locked++
			telemetry.CredentialLocksTotal.WithLabelValues(slotID).Inc()
			e.publish(events.EventCredentialLocked, events.Payload{
				"credential": key,
				"slot":       slotID,
			})
			e.logger.Info().Str("credential", key).Str("slot", slotID).
				Msg("credential locked")
		}
	}

	e.logger.Info().Int("locked", locked).Msg("lock pass complete")
	return locked
}
