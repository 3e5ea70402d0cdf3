// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rewatched/rewatched/internal/auth"
)

type claimsKey struct{}

// Authenticate verifies the bearer token on admin endpoints and places the
// session claims in the request context.
func (h *Handlers) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			respondError(w, http.StatusUnauthorized, errCodeUnauthorized, "missing bearer token", start)
			return
		}

		claims, err := h.jwt.ValidateToken(strings.TrimPrefix(header, prefix))
		if err != nil {
			respondError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid or expired session", start)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionClaims returns the authenticated session claims, or nil outside an
// authenticated route.
func SessionClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}
