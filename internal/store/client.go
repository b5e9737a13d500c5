/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store is the HTTP client for the tree-shaped document store. The
// store is addressed by path: settings live under /settings.json, the full
// tree under /.json, and individual credentials under /<key>.json. Writes
// are whole-subtree overwrites with no concurrency check; the next scheduled
// engine run is the only retry mechanism.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/slotwarden/internal/models"
)

const defaultTimeout = 10 * time.Second

// secretHeader authenticates the proxied read/write path.
const secretHeader = "X-Secret"

// Config contains store client configuration.
type Config struct {
	// BaseURL is the store root, e.g. "https://mydb.firebaseio.com".
	BaseURL string

	// Secret is the shared secret sent on authenticated calls.
	Secret string

	// Timeout bounds each individual request.
	Timeout time.Duration
}

// Client talks to the document store.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	logger  zerolog.Logger
}

// New creates a store client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("store: base URL must be provided")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.Secret,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "store").Logger(),
	}, nil
}

// GetSettings reads the slot map settings.
func (c *Client) GetSettings(ctx context.Context) (models.Settings, error) {
	var settings models.Settings
	if err := c.get(ctx, "/settings.json", false, &settings); err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}

// PatchSlots replaces the whole slot map in a single update, carrying nodes
// the engine did not decode through unchanged.
func (c *Client) PatchSlots(ctx context.Context, settings models.Settings) error {
	slots, err := settings.SlotMap()
	if err != nil {
		return fmt.Errorf("store: encode slot map: %w", err)
	}
	body := map[string]map[string]json.RawMessage{"slots": slots}
	return c.send(ctx, http.MethodPatch, "/settings.json", false, body)
}

// GetTree reads the full store tree.
func (c *Client) GetTree(ctx context.Context) (models.Tree, error) {
	var tree models.Tree
	if err := c.get(ctx, "/.json", false, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// LockCredential flips a single credential's locked field to 1.
func (c *Client) LockCredential(ctx context.Context, key string) error {
	body := map[string]int{"locked": models.LockStateLocked}
	return c.send(ctx, http.MethodPatch, "/"+key+".json", false, body)
}

// GetTreeAuth reads the full tree through the authenticated path.
func (c *Client) GetTreeAuth(ctx context.Context) (models.Tree, error) {
	var tree models.Tree
	if err := c.get(ctx, "/.json", true, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// PutTreeAuth overwrites the full tree through the authenticated path.
func (c *Client) PutTreeAuth(ctx context.Context, tree models.Tree) error {
	return c.send(ctx, http.MethodPut, "/.json", true, tree)
}

// GetRaw reads the full tree as raw JSON for the proxy read endpoint.
func (c *Client) GetRaw(ctx context.Context) (json.RawMessage, error) {
	data, err := c.do(ctx, http.MethodGet, "/.json", true, nil)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PutRaw overwrites the full tree with caller-supplied JSON for the proxy
// write endpoint and returns the store's reply body.
func (c *Client) PutRaw(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, "/.json", true, bytes.NewReader(body))
}

func (c *Client) get(ctx context.Context, path string, withSecret bool, dest any) error {
	data, err := c.do(ctx, http.MethodGet, path, withSecret, nil)
	if err != nil {
		return err
	}
	// The store answers "null" for an absent subtree; leave dest zero.
	if len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("store: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, withSecret bool, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("store: encode %s body: %w", path, err)
	}
	_, err = c.do(ctx, method, path, withSecret, bytes.NewReader(data))
	return err
}

func (c *Client) do(ctx context.Context, method, path string, withSecret bool, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("store: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withSecret {
		req.Header.Set(secretHeader, c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("store: %s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("store call rejected")
		return nil, fmt.Errorf("store: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	return data, nil
}
