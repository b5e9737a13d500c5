/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the typed view of the document store tree: slot
// settings, credentials, and per-user account claims. Shape validation
// happens here, once, at the storage-read boundary; the engine only ever
// sees typed records.
package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Frequency enumerates slot recurrence periods.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyThree  Frequency = "3day"
	FrequencyWeekly Frequency = "weekly"
)

// ShiftDelta returns the recurrence period for the frequency. Unrecognized
// values fall back to daily.
func (f Frequency) ShiftDelta() time.Duration {
	switch Frequency(strings.ToLower(string(f))) {
	case FrequencyThree:
		return 3 * 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Slot is a named recurring time window governing a group of credentials.
// Fields the engine does not model are preserved verbatim across a
// read-modify-write cycle so a whole-map write never drops them.
type Slot struct {
	Enabled    bool
	SlotStart  string
	SlotEnd    string
	Frequency  Frequency
	LastUpdate string

	extra map[string]json.RawMessage
}

// slot field keys in the store.
const (
	keyEnabled    = "enabled"
	keySlotStart  = "slot_start"
	keySlotEnd    = "slot_end"
	keyFrequency  = "frequency"
	keyLastUpdate = "last_update"
)

// UnmarshalJSON decodes a slot node leniently: a missing or mistyped field
// keeps its zero value, and unknown fields are retained for write-back.
func (s *Slot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	take := func(key string, dest any) {
		if v, ok := raw[key]; ok {
			if json.Unmarshal(v, dest) == nil {
				delete(raw, key)
			}
		}
	}
	take(keyEnabled, &s.Enabled)
	take(keySlotStart, &s.SlotStart)
	take(keySlotEnd, &s.SlotEnd)
	take(keyFrequency, &s.Frequency)
	take(keyLastUpdate, &s.LastUpdate)

	if len(raw) > 0 {
		s.extra = raw
	}
	return nil
}

// MarshalJSON re-emits the slot with its preserved unknown fields.
func (s Slot) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.extra)+5)
	for k, v := range s.extra {
		out[k] = v
	}
	put := func(key string, value any) error {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		out[key] = data
		return nil
	}
	if err := put(keyEnabled, s.Enabled); err != nil {
		return nil, err
	}
	if err := put(keySlotStart, s.SlotStart); err != nil {
		return nil, err
	}
	if err := put(keySlotEnd, s.SlotEnd); err != nil {
		return nil, err
	}
	if err := put(keyFrequency, s.Frequency); err != nil {
		return nil, err
	}
	if err := put(keyLastUpdate, s.LastUpdate); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// Settings is the slot map stored under settings.json. Slot nodes that are
// not objects are not slots; the engine skips them, but they ride along as
// raw entries so a whole-map write never drops them from the store.
type Settings struct {
	Slots map[string]*Slot

	rawSlots map[string]json.RawMessage
}

// UnmarshalJSON decodes the settings subtree. Non-object slot nodes are kept
// verbatim for write-back instead of decoded.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw struct {
		Slots map[string]json.RawMessage `json:"slots"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Slots == nil {
		return nil
	}
	s.Slots = make(map[string]*Slot, len(raw.Slots))
	for id, node := range raw.Slots {
		slot := new(Slot)
		if err := json.Unmarshal(node, slot); err != nil {
			if s.rawSlots == nil {
				s.rawSlots = make(map[string]json.RawMessage)
			}
			s.rawSlots[id] = node
			continue
		}
		s.Slots[id] = slot
	}
	return nil
}

// SlotMap returns the store-shaped slot map: every decoded slot re-encoded
// next to the nodes that were preserved verbatim.
func (s Settings) SlotMap() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(s.Slots)+len(s.rawSlots))
	for id, node := range s.rawSlots {
		out[id] = node
	}
	for id, slot := range s.Slots {
		data, err := json.Marshal(slot)
		if err != nil {
			return nil, err
		}
		out[id] = data
	}
	return out, nil
}

// MarshalJSON emits the settings subtree in store shape.
func (s Settings) MarshalJSON() ([]byte, error) {
	if s.Slots == nil && s.rawSlots == nil {
		return json.Marshal(map[string]any{"slots": nil})
	}
	slots, err := s.SlotMap()
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]map[string]json.RawMessage{"slots": slots})
}

// FlexInt decodes an integer that the store may hold as a JSON number or a
// numeric string. Anything else decodes to zero rather than failing, which
// matches the locker's "non-numeric locked defaults to open" rule.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*f = FlexInt(n)
			return nil
		}
	}
	*f = 0
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(f))
}

// Credential lock states. The engine only ever transitions open to locked.
const (
	LockStateOpen   = 0
	LockStateLocked = 1
)

// Credential is a shared resource scoped to exactly one slot.
type Credential struct {
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	ExpiryDate    string  `json:"expiry_date"`
	Locked        FlexInt `json:"locked"`
	UsageCount    FlexInt `json:"usage_count"`
	MaxUsage      FlexInt `json:"max_usage"`
	BelongsToSlot string  `json:"belongs_to_slot"`
}

var credentialKeys = []string{
	"email", "password", "expiry_date",
	"locked", "usage_count", "max_usage",
	"belongs_to_slot",
}

// ParseCredential validates and decodes a tree node as a credential. Nodes
// that are not objects or are missing any required field yield a skip
// signal; they are never mutated downstream.
func ParseCredential(data json.RawMessage) (*Credential, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false
	}
	for _, key := range credentialKeys {
		if _, ok := raw[key]; !ok {
			return nil, false
		}
	}
	cred := new(Credential)
	if err := json.Unmarshal(data, cred); err != nil {
		return nil, false
	}
	return cred, true
}

// AccountClaims maps user id to a map of slot id to claim payload. Payloads
// are opaque to the engine. User entries that are not objects cannot hold
// claims; they are kept verbatim and written back unchanged.
type AccountClaims struct {
	Users map[string]map[string]json.RawMessage

	raw map[string]json.RawMessage
}

// UnmarshalJSON decodes the claim subtree, preserving undecodable user
// entries for write-back.
func (c *AccountClaims) UnmarshalJSON(data []byte) error {
	var nodes map[string]json.RawMessage
	if err := json.Unmarshal(data, &nodes); err != nil {
		return err
	}
	c.Users = make(map[string]map[string]json.RawMessage, len(nodes))
	for user, node := range nodes {
		var userClaims map[string]json.RawMessage
		if err := json.Unmarshal(node, &userClaims); err != nil || userClaims == nil {
			if c.raw == nil {
				c.raw = make(map[string]json.RawMessage)
			}
			c.raw[user] = node
			continue
		}
		c.Users[user] = userClaims
	}
	return nil
}

// MarshalJSON re-emits the claim subtree with its preserved entries.
func (c AccountClaims) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.Users)+len(c.raw))
	for user, node := range c.raw {
		out[user] = node
	}
	for user, userClaims := range c.Users {
		data, err := json.Marshal(userClaims)
		if err != nil {
			return nil, err
		}
		out[user] = data
	}
	return json.Marshal(out)
}

// Tree is the full store snapshot keyed by top-level path. Subtrees the
// engine does not model round-trip untouched through a whole-tree write.
type Tree map[string]json.RawMessage

// Settings extracts the settings subtree, or an empty value if absent.
func (t Tree) Settings() (Settings, error) {
	var settings Settings
	node, ok := t["settings"]
	if !ok {
		return settings, nil
	}
	if err := json.Unmarshal(node, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// AccountClaims extracts the claim subtree, defaulting to empty. A subtree
// that is not an object yields no claims; the reconciler only writes after
// removing something, so such a node survives untouched.
func (t Tree) AccountClaims() AccountClaims {
	claims := AccountClaims{Users: map[string]map[string]json.RawMessage{}}
	if node, ok := t["account_claims"]; ok {
		_ = json.Unmarshal(node, &claims)
	}
	return claims
}

// SetAccountClaims writes the claim subtree back into the snapshot.
func (t Tree) SetAccountClaims(claims AccountClaims) error {
	data, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	t["account_claims"] = data
	return nil
}

// Credentials returns every shape-valid credential in the snapshot, keyed by
// its store path segment.
func (t Tree) Credentials() map[string]*Credential {
	creds := make(map[string]*Credential)
	for key, node := range t {
		if cred, ok := ParseCredential(node); ok {
			creds[key] = cred
		}
	}
	return creds
}
