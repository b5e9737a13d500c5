/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"context"

	"github.com/friendsincode/slotwarden/internal/events"
	"github.com/friendsincode/slotwarden/internal/telemetry"
	"github.com/friendsincode/slotwarden/internal/timeutil"
)

// Reconcile removes every account claim that references a slot whose window
// ended strictly before now. The full tree is read once through the
// authenticated path and, when anything was removed, written back whole; the
// engine does not track which other subtrees changed, so it round-trips the
// snapshot it read.
func (e *Engine) Reconcile(ctx context.Context) {
	done := observe("reconcile")
	defer done()

	now := e.now()

	tree, err := e.store.GetTreeAuth(ctx)
	if err != nil {
		telemetry.EngineErrorsTotal.WithLabelValues("reconcile", "read").Inc()
		e.logger.Warn().Err(err).Msg("tree read failed, skipping reconcile pass")
		return
	}
	if len(tree) == 0 {
		return
	}

	settings, err := tree.Settings()
	if err != nil || len(settings.Slots) == 0 {
		return
	}
	claims := tree.AccountClaims()

	cleared := 0
	for slotID, slot := range settings.Slots {
		end, err := timeutil.Parse(slot.SlotEnd)
		if err != nil {
			// A claim for a slot with a missing or malformed end is
			// preserved.
			continue
		}
		if !now.After(end) {
			continue
		}
		for user, userClaims := range claims.Users {
			if _, ok := userClaims[slotID]; !ok {
				continue
			}
			delete(userClaims, slotID)
			cleared++
			telemetry.ClaimsClearedTotal.WithLabelValues(slotID).Inc()
			e.logger.Info().Str("user", user).Str("slot", slotID).
				Msg("stale claim removed")
		}
	}

	if cleared == 0 {
		return
	}

	if err := tree.SetAccountClaims(claims); err != nil {
		telemetry.EngineErrorsTotal.WithLabelValues("reconcile", "encode").Inc()
		e.logger.Error().Err(err).Msg("claim subtree encode failed")
		return
	}
	if err := e.store.PutTreeAuth(ctx, tree); err != nil {
		telemetry.EngineErrorsTotal.WithLabelValues("reconcile", "write").Inc()
		e.logger.Error().Err(err).Int("cleared", cleared).
			Msg("tree write failed, claim removals discarded")
		return
	}

	e.logger.Info().Int("cleared", cleared).Msg("stale claims reconciled")
	e.publish(events.EventClaimsCleared, events.Payload{"cleared": cleared})
}
