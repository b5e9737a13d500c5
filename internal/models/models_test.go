/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFrequencyShiftDelta(t *testing.T) {
	tests := []struct {
		name      string
		frequency Frequency
		want      time.Duration
	}{
		{name: "daily", frequency: FrequencyDaily, want: 24 * time.Hour},
		{name: "3day", frequency: FrequencyThree, want: 72 * time.Hour},
		{name: "weekly", frequency: FrequencyWeekly, want: 7 * 24 * time.Hour},
		{name: "mixed case", frequency: Frequency("Weekly"), want: 7 * 24 * time.Hour},
		{name: "unknown falls back to daily", frequency: Frequency("fortnight"), want: 24 * time.Hour},
		{name: "empty falls back to daily", frequency: Frequency(""), want: 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frequency.ShiftDelta(); got != tt.want {
				t.Errorf("ShiftDelta() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSlotRoundTripPreservesUnknownFields(t *testing.T) {
	raw := []byte(`{"enabled":true,"slot_start":"2024-01-01 09:00:00","slot_end":"2024-01-02 09:00:00","frequency":"daily","last_update":"2024-01-01 08:00:00","claimed_by":"user_42"}`)

	var slot Slot
	if err := json.Unmarshal(raw, &slot); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !slot.Enabled || slot.SlotStart != "2024-01-01 09:00:00" {
		t.Fatalf("unexpected slot fields: %+v", slot)
	}

	slot.SlotStart = "2024-01-02 09:00:00"
	out, err := json.Marshal(&slot)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded["claimed_by"] != "user_42" {
		t.Fatalf("unknown field dropped: %v", decoded)
	}
	if decoded["slot_start"] != "2024-01-02 09:00:00" {
		t.Fatalf("known field not updated: %v", decoded)
	}
}

func TestSettingsSkipsNonObjectSlotNodes(t *testing.T) {
	raw := []byte(`{"slots":{"slot_1":{"enabled":true},"junk":"not a slot"}}`)

	var settings Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(settings.Slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(settings.Slots))
	}
	if _, ok := settings.Slots["slot_1"]; !ok {
		t.Fatal("slot_1 missing")
	}
}

func TestSettingsSlotMapKeepsNonObjectNodes(t *testing.T) {
	// A node under slots that is not a slot still belongs to the store; a
	// whole-map write must carry it through unchanged.
	raw := []byte(`{"slots":{"slot_1":{"enabled":true},"junk":"not a slot"}}`)

	var settings Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	slots, err := settings.SlotMap()
	if err != nil {
		t.Fatalf("slot map: %v", err)
	}
	if string(slots["junk"]) != `"not a slot"` {
		t.Fatalf("non-object node not preserved: %s", slots["junk"])
	}
	if _, ok := slots["slot_1"]; !ok {
		t.Fatal("slot_1 missing from slot map")
	}

	out, err := json.Marshal(settings)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Slots map[string]json.RawMessage `json:"slots"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if string(decoded.Slots["junk"]) != `"not a slot"` {
		t.Fatalf("non-object node dropped on marshal: %s", out)
	}
}

func TestSettingsWithoutSlotsNode(t *testing.T) {
	var settings Settings
	if err := json.Unmarshal([]byte(`{"single_slot":{"enabled":true}}`), &settings); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if settings.Slots != nil {
		t.Fatalf("expected nil slot map for legacy shape, got %v", settings.Slots)
	}
}

func TestFlexIntDecoding(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want FlexInt
	}{
		{name: "number", raw: `1`, want: 1},
		{name: "numeric string", raw: `"2"`, want: 2},
		{name: "padded numeric string", raw: `" 0 "`, want: 0},
		{name: "non-numeric string defaults to zero", raw: `"banana"`, want: 0},
		{name: "object defaults to zero", raw: `{}`, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got FlexInt
			if err := json.Unmarshal([]byte(tt.raw), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != tt.want {
				t.Errorf("decoded %q to %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseCredential(t *testing.T) {
	valid := json.RawMessage(`{
		"email":"a@example.com","password":"pw","expiry_date":"2024-12-31",
		"locked":0,"usage_count":3,"max_usage":5,"belongs_to_slot":"slot_1"
	}`)
	cred, ok := ParseCredential(valid)
	if !ok {
		t.Fatal("expected valid credential")
	}
	if cred.BelongsToSlot != "slot_1" || cred.Locked != LockStateOpen {
		t.Fatalf("unexpected credential: %+v", cred)
	}

	missingField := json.RawMessage(`{"email":"a@example.com","password":"pw"}`)
	if _, ok := ParseCredential(missingField); ok {
		t.Fatal("credential missing required fields should be skipped")
	}

	notObject := json.RawMessage(`"just a string"`)
	if _, ok := ParseCredential(notObject); ok {
		t.Fatal("non-object node should be skipped")
	}
}

func TestTreeCredentials(t *testing.T) {
	tree := Tree{
		"cred_7": json.RawMessage(`{
			"email":"a@example.com","password":"pw","expiry_date":"x",
			"locked":"1","usage_count":0,"max_usage":1,"belongs_to_slot":"slot_1"
		}`),
		"settings":       json.RawMessage(`{"slots":{}}`),
		"account_claims": json.RawMessage(`{"user_1":{"slot_1":true}}`),
	}

	creds := tree.Credentials()
	if len(creds) != 1 {
		t.Fatalf("expected 1 credential, got %d", len(creds))
	}
	if creds["cred_7"].Locked != LockStateLocked {
		t.Fatalf("string lock state not decoded: %+v", creds["cred_7"])
	}
}

func TestTreeAccountClaimsRoundTrip(t *testing.T) {
	tree := Tree{
		"account_claims": json.RawMessage(`{"user_1":{"slot_1":{"claimed":true}}}`),
		"other":          json.RawMessage(`{"left":"alone"}`),
	}

	claims := tree.AccountClaims()
	if len(claims.Users["user_1"]) != 1 {
		t.Fatalf("unexpected claims: %v", claims.Users)
	}

	delete(claims.Users["user_1"], "slot_1")
	if err := tree.SetAccountClaims(claims); err != nil {
		t.Fatalf("set claims: %v", err)
	}

	if string(tree["other"]) != `{"left":"alone"}` {
		t.Fatalf("unrelated subtree mutated: %s", tree["other"])
	}
	updated := tree.AccountClaims()
	if len(updated.Users["user_1"]) != 0 {
		t.Fatalf("claim not removed: %v", updated.Users)
	}
}

func TestTreeAccountClaimsKeepsMalformedEntries(t *testing.T) {
	// A user entry that is not an object holds no claims, but it is store
	// data all the same; a write-back must re-emit it byte for byte.
	tree := Tree{
		"account_claims": json.RawMessage(`{"user_1":{"slot_1":"x"},"z_junk":"not an object"}`),
	}

	claims := tree.AccountClaims()
	if _, ok := claims.Users["z_junk"]; ok {
		t.Fatal("malformed entry surfaced as a claim map")
	}
	if len(claims.Users["user_1"]) != 1 {
		t.Fatalf("unexpected claims: %v", claims.Users)
	}

	delete(claims.Users["user_1"], "slot_1")
	if err := tree.SetAccountClaims(claims); err != nil {
		t.Fatalf("set claims: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(tree["account_claims"], &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded["z_junk"]) != `"not an object"` {
		t.Fatalf("malformed entry mutated: %s", decoded["z_junk"])
	}
}

func TestTreeAccountClaimsDefaultsToEmpty(t *testing.T) {
	claims := Tree{}.AccountClaims()
	if claims.Users == nil || len(claims.Users) != 0 {
		t.Fatalf("expected empty claims, got %v", claims.Users)
	}
}
