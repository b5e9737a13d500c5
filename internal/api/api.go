/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the trigger and proxy endpoints. The trigger endpoints
// (/update_slot, /lock_check) run engine passes synchronously and always
// answer with the legacy plain-text acknowledgements; engine failures are
// visible in logs only. The proxy endpoints (/getData, /setData) are gated
// by the shared secret and pass the raw tree through.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/slotwarden/internal/auth"
	"github.com/friendsincode/slotwarden/internal/cache"
	"github.com/friendsincode/slotwarden/internal/engine"
	"github.com/friendsincode/slotwarden/internal/logbuffer"
	"github.com/friendsincode/slotwarden/internal/store"
	"github.com/friendsincode/slotwarden/internal/version"
)

// API wires HTTP handlers to the engine and store.
type API struct {
	engine    *engine.Engine
	store     *store.Client
	cache     *cache.Cache
	logBuffer *logbuffer.Buffer
	secret    string
	logger    zerolog.Logger
}

// New constructs the API.
func New(eng *engine.Engine, st *store.Client, c *cache.Cache, logBuf *logbuffer.Buffer, secret string, logger zerolog.Logger) *API {
	return &API{
		engine:    eng,
		store:     st,
		cache:     c,
		logBuffer: logBuf,
		secret:    secret,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers all endpoints on the router.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", a.handleHealth)

	// Trigger endpoints, invoked by an external cron. Unauthenticated,
	// like the deployment they replace; they expose no data.
	r.Get("/update_slot", a.handleUpdateSlot)
	r.Get("/lock_check", a.handleLockCheck)

	// Proxy and introspection endpoints behind the shared secret.
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(a.secret))
		pr.Get("/getData", a.handleGetData)
		pr.Post("/setData", a.handleSetData)
		pr.Get("/logs", a.handleLogs)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (a *API) handleUpdateSlot(w http.ResponseWriter, r *http.Request) {
	a.engine.Shift(r.Context())
	a.invalidateSnapshot(r)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Slot times updated!\n"))
}

func (a *API) handleLockCheck(w http.ResponseWriter, r *http.Request) {
	locked := a.engine.Lock(r.Context())
	if locked > 0 {
		a.invalidateSnapshot(r)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Lock check done.\n"))
}

func (a *API) handleGetData(w http.ResponseWriter, r *http.Request) {
	if a.cache != nil {
		if data, ok := a.cache.GetSnapshot(r.Context()); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
			return
		}
	}

	data, err := a.store.GetRaw(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("proxy read failed")
		writeError(w, http.StatusInternalServerError, "Failed to read DB")
		return
	}

	if a.cache != nil {
		_ = a.cache.SetSnapshot(r.Context(), data)
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (a *API) handleSetData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}

	resp, err := a.store.PutRaw(r.Context(), body)
	if err != nil {
		a.logger.Error().Err(err).Msg("proxy write failed")
		writeError(w, http.StatusInternalServerError, "Failed to write DB")
		return
	}

	a.invalidateSnapshot(r)
	// The store's reply rides along as a string, as the old proxy answered.
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"resp":   string(resp),
	})
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "Log buffer not available",
		})
		return
	}

	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("search"),
		Descending: true, // Default to newest first
	}

	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			params.Limit = n
		}
	} else {
		params.Limit = 500 // Default limit
	}

	if order := r.URL.Query().Get("order"); order == "asc" {
		params.Descending = false
	}

	entries := a.logBuffer.Query(params)

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (a *API) invalidateSnapshot(r *http.Request) {
	if a.cache != nil {
		_ = a.cache.InvalidateSnapshot(r.Context())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
