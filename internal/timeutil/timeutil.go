/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeutil parses and formats the civil timestamps stored in the
// document store. All timestamps live in a single fixed zone (IST); the zone
// has no DST transitions, so a fixed offset avoids any tzdata dependency.
package timeutil

import (
	"fmt"
	"time"
)

// Layout is the wire format for every timestamp in the store.
const Layout = "2006-01-02 15:04:05"

// Zone is the fixed civil calendar zone (UTC+05:30).
var Zone = time.FixedZone("IST", 5*3600+30*60)

// Parse decodes a store timestamp. Callers must treat failure as recoverable
// and substitute their own fallback.
func Parse(value string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, value, Zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

// Format encodes a timestamp in the store wire format, in the fixed zone.
func Format(t time.Time) string {
	return t.In(Zone).Format(Layout)
}

// Now returns the current instant in the fixed zone. Engine runs sample it
// once and thread the value through, so every decision within a run sees the
// same instant.
func Now() time.Time {
	return time.Now().In(Zone)
}
