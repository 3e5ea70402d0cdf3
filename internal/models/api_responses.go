// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package models

import "time"

// APIResponse is the envelope for all JSON API responses.
type APIResponse struct {
	Status   string      `json:"status"` // "success" or "error"
	Data     interface{} `json:"data,omitempty"`
	Error    *APIError   `json:"error,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// APIError carries a machine-readable code alongside the human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Metadata is attached to every response for client-side diagnostics.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms"`
}

// GenerateRequest is the admin request to start a generation run.
type GenerateRequest struct {
	Year        int    `json:"year" validate:"required,min=2000,max=2100"`
	TriggeredBy string `json:"triggered_by,omitempty" validate:"omitempty,max=128"`
}

// LoginRequest is the admin credential exchange request.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the signed admin session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
