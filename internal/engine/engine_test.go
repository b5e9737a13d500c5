/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotwarden/internal/events"
	"github.com/friendsincode/slotwarden/internal/store"
	"github.com/friendsincode/slotwarden/internal/timeutil"
)

// fakeStore serves the document store contract from an in-memory tree and
// applies PATCH/PUT mutations to it, so a test can assert on the state the
// engine left behind.
type fakeStore struct {
	mu      sync.Mutex
	tree    map[string]any
	fail    map[string]bool // "METHOD /path" -> respond 500
	patched []string
	puts    int
}

func newFakeStore(tree map[string]any) *fakeStore {
	// Round-trip the seed through JSON so its values carry the same types
	// (float64 numbers) the store contract delivers over the wire.
	raw, err := json.Marshal(tree)
	if err != nil {
		panic(err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		panic(err)
	}
	return &fakeStore{tree: normalized, fail: make(map[string]bool)}
}

func (f *fakeStore) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.fail[r.Method+" "+r.URL.Path] {
			http.Error(w, "store down", http.StatusInternalServerError)
			return
		}

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/.json":
			json.NewEncoder(w).Encode(f.tree)
		case r.Method == http.MethodGet && r.URL.Path == "/settings.json":
			json.NewEncoder(w).Encode(f.tree["settings"])
		case r.Method == http.MethodPatch:
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json")
			node, _ := f.tree[name].(map[string]any)
			if node == nil {
				node = make(map[string]any)
			}
			for k, v := range body {
				node[k] = v
			}
			f.tree[name] = node
			f.patched = append(f.patched, r.URL.Path)
			json.NewEncoder(w).Encode(body)
		case r.Method == http.MethodPut && r.URL.Path == "/.json":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.tree = body
			f.puts++
			json.NewEncoder(w).Encode(body)
		default:
			http.NotFound(w, r)
		}
	}
}

func (f *fakeStore) slot(t *testing.T, id string) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	settings, _ := f.tree["settings"].(map[string]any)
	slots, _ := settings["slots"].(map[string]any)
	slot, ok := slots[id].(map[string]any)
	if !ok {
		t.Fatalf("slot %q missing from store", id)
	}
	return slot
}

func (f *fakeStore) cred(t *testing.T, key string) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	cred, ok := f.tree[key].(map[string]any)
	if !ok {
		t.Fatalf("credential %q missing from store", key)
	}
	return cred
}

func (f *fakeStore) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patched)
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

// newTestEngine wires an engine to the fake store with the clock pinned at
// the given store-format timestamp.
func newTestEngine(t *testing.T, fs *fakeStore, now string) *Engine {
	t.Helper()
	srv := httptest.NewServer(fs.handler())
	t.Cleanup(srv.Close)

	client, err := store.New(store.Config{BaseURL: srv.URL, Secret: "hush"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	e := New(client, events.NewBus(), zerolog.Nop())
	instant, err := timeutil.Parse(now)
	if err != nil {
		t.Fatalf("parse now %q: %v", now, err)
	}
	e.now = func() time.Time { return instant }
	return e
}

func slotNode(enabled bool, start, end, frequency, lastUpdate string) map[string]any {
	return map[string]any{
		"enabled":     enabled,
		"slot_start":  start,
		"slot_end":    end,
		"frequency":   frequency,
		"last_update": lastUpdate,
	}
}

func credNode(slot string, locked any) map[string]any {
	return map[string]any{
		"email":           "user@example.com",
		"password":        "pw",
		"expiry_date":     "2030-01-01",
		"locked":          locked,
		"usage_count":     0,
		"max_usage":       5,
		"belongs_to_slot": slot,
	}
}

func settingsTree(slots map[string]any, rest map[string]any) map[string]any {
	tree := map[string]any{
		"settings": map[string]any{"slots": slots},
	}
	for k, v := range rest {
		tree[k] = v
	}
	return tree
}
