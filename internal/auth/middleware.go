/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package auth gates the proxy endpoints behind a shared secret carried in
// the X-Secret header.
package auth

import (
	"crypto/subtle"
	"net/http"
)

// SecretHeader is the header carrying the shared secret on inbound requests.
const SecretHeader = "X-Secret"

// Middleware rejects requests whose X-Secret header does not match the
// configured shared secret. The comparison is constant time.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := r.Header.Get(SecretHeader)
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(secret)) != 1 {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error": "Unauthorized"}`))
}
