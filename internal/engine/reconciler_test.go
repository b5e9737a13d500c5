/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"context"
	"net/http"
	"testing"
)

func claims(m map[string]map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for user, slots := range m {
		inner := make(map[string]any, len(slots))
		for slot, payload := range slots {
			inner[slot] = payload
		}
		out[user] = inner
	}
	return out
}

func (f *fakeStore) userClaims(t *testing.T, user string) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	all, _ := f.tree["account_claims"].(map[string]any)
	uc, _ := all[user].(map[string]any)
	return uc
}

func TestReconcileRemovesStaleClaims(t *testing.T) {
	fs := newFakeStore(settingsTree(map[string]any{
		"slot_1": slotNode(true,
			"2024-01-01 09:00:00", "2024-01-02 09:00:00",
			"daily", "2024-01-01 08:00:00"),
		"slot_2": slotNode(true,
			"2024-01-02 10:00:00", "2024-01-03 10:00:00",
			"daily", "2024-01-02 08:00:00"),
	}, map[string]any{
		"account_claims": claims(map[string]map[string]any{
			"user_a": {"slot_1": map[string]any{"claimed_at": "x"}, "slot_2": "y"},
			"user_b": {"slot_1": "z"},
		}),
		"unrelated": map[string]any{"keep": "me"},
	}))
	e := newTestEngine(t, fs, "2024-01-02 09:30:00")

	e.Reconcile(context.Background())

	if n := fs.putCount(); n != 1 {
		t.Fatalf("put count = %d, want 1", n)
	}
	if uc := fs.userClaims(t, "user_a"); uc == nil {
		t.Fatal("user_a claims missing")
	} else {
		if _, ok := uc["slot_1"]; ok {
			t.Error("user_a slot_1 claim survived a closed window")
		}
		if _, ok := uc["slot_2"]; !ok {
			t.Error("user_a slot_2 claim removed for an open window")
		}
	}
	if uc := fs.userClaims(t, "user_b"); uc == nil {
		t.Fatal("user_b claims missing")
	} else if _, ok := uc["slot_1"]; ok {
		t.Error("user_b slot_1 claim survived a closed window")
	}

	// The whole-tree write must round-trip untouched subtrees.
	fs.mu.Lock()
	unrelated, _ := fs.tree["unrelated"].(map[string]any)
	fs.mu.Unlock()
	if unrelated["keep"] != "me" {
		t.Errorf("unrelated subtree = %v, want preserved", unrelated)
	}
}

func TestReconcilePreservesMalformedClaimEntry(t *testing.T) {
	// A claim entry that is not an object must ride through the dirty
	// whole-tree write unchanged, not re-encode as null.
	fs := newFakeStore(settingsTree(map[string]any{
		"slot_1": slotNode(true,
			"2024-01-01 09:00:00", "2024-01-02 09:00:00",
			"daily", ""),
	}, map[string]any{
		"account_claims": map[string]any{
			"user_a": map[string]any{"slot_1": "stale"},
			"z_junk": "not an object",
		},
	}))
	e := newTestEngine(t, fs, "2024-01-02 09:30:00")

	e.Reconcile(context.Background())

	if n := fs.putCount(); n != 1 {
		t.Fatalf("put count = %d, want 1", n)
	}
	if uc := fs.userClaims(t, "user_a"); len(uc) != 0 {
		t.Errorf("stale claim survived: %v", uc)
	}
	fs.mu.Lock()
	all, _ := fs.tree["account_claims"].(map[string]any)
	junk := all["z_junk"]
	fs.mu.Unlock()
	if junk != "not an object" {
		t.Errorf("malformed claim entry mutated: %v", junk)
	}
}

func TestReconcileKeepsClaimAtExactBoundary(t *testing.T) {
	// slot_end == now is not strictly past.
	fs := newFakeStore(settingsTree(map[string]any{
		"slot_1": slotNode(true,
			"2024-01-01 09:00:00", "2024-01-02 09:00:00",
			"daily", ""),
	}, map[string]any{
		"account_claims": claims(map[string]map[string]any{
			"user_a": {"slot_1": "x"},
		}),
	}))
	e := newTestEngine(t, fs, "2024-01-02 09:00:00")

	e.Reconcile(context.Background())

	if n := fs.putCount(); n != 0 {
		t.Errorf("put count = %d, want 0", n)
	}
}

func TestReconcileKeepsClaimForMalformedEnd(t *testing.T) {
	fs := newFakeStore(settingsTree(map[string]any{
		"slot_1": slotNode(true,
			"2024-01-01 09:00:00", "whenever", "daily", ""),
	}, map[string]any{
		"account_claims": claims(map[string]map[string]any{
			"user_a": {"slot_1": "x"},
		}),
	}))
	e := newTestEngine(t, fs, "2024-06-01 12:00:00")

	e.Reconcile(context.Background())

	if n := fs.putCount(); n != 0 {
		t.Errorf("put count = %d, want 0", n)
	}
	if uc := fs.userClaims(t, "user_a"); uc == nil {
		t.Fatal("user_a claims missing")
	} else if _, ok := uc["slot_1"]; !ok {
		t.Error("claim removed despite malformed slot_end")
	}
}

func TestReconcileNoWriteWhenClean(t *testing.T) {
	fs := newFakeStore(settingsTree(map[string]any{
		"slot_1": slotNode(true,
			"2024-01-01 09:00:00", "2024-01-02 09:00:00",
			"daily", ""),
	}, nil))
	e := newTestEngine(t, fs, "2024-06-01 12:00:00")

	e.Reconcile(context.Background())

	if n := fs.putCount(); n != 0 {
		t.Errorf("put count = %d, want 0", n)
	}
}

func TestReconcileAbortsWithoutSlotMap(t *testing.T) {
	fs := newFakeStore(map[string]any{
		"settings": map[string]any{},
		"account_claims": claims(map[string]map[string]any{
			"user_a": {"slot_1": "x"},
		}),
	})
	e := newTestEngine(t, fs, "2024-06-01 12:00:00")

	e.Reconcile(context.Background())

	if n := fs.putCount(); n != 0 {
		t.Errorf("put count = %d, want 0", n)
	}
}

func TestReconcileAbortsOnReadFailure(t *testing.T) {
	fs := newFakeStore(settingsTree(map[string]any{
		"slot_1": slotNode(true,
			"2024-01-01 09:00:00", "2024-01-02 09:00:00",
			"daily", ""),
	}, map[string]any{
		"account_claims": claims(map[string]map[string]any{
			"user_a": {"slot_1": "x"},
		}),
	}))
	fs.fail[http.MethodGet+" /.json"] = true
	e := newTestEngine(t, fs, "2024-06-01 12:00:00")

	e.Reconcile(context.Background())

	if n := fs.putCount(); n != 0 {
		t.Errorf("put count = %d, want 0", n)
	}
}
