// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

// Package api is the HTTP surface: the admin API, the public tokenized
// share endpoint, health, and metrics.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rewatched/rewatched/internal/logging"
	"github.com/rewatched/rewatched/internal/models"
)

// Machine-readable error codes returned in the response envelope.
const (
	errCodeBadRequest   = "BAD_REQUEST"
	errCodeUnauthorized = "UNAUTHORIZED"
	errCodeNotFound     = "NOT_FOUND"
	errCodeConflict     = "CONFLICT"
	errCodeInternal     = "INTERNAL_ERROR"
)

// respondJSON writes a success envelope.
func respondJSON(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	resp := models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	}
	writeJSON(w, status, &resp)
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, start time.Time) {
	resp := models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	}
	writeJSON(w, status, &resp)
}

func writeJSON(w http.ResponseWriter, status int, resp *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}
