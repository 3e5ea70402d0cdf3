// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package models

import "time"

// GenerationStatus is the lifecycle state of a batch run.
type GenerationStatus string

// Generation lifecycle: pending -> processing -> completed | failed.
// Only the orchestrator mutates status; the stats engine never touches it.
const (
	GenerationPending    GenerationStatus = "pending"
	GenerationProcessing GenerationStatus = "processing"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

// Generation is one batch run of the stats engine across a user population
// for one target year. A generation owns at most one UserYearStats per
// user, enforced by a uniqueness constraint in the store.
//
// A run that loses individual users still completes: final status reflects
// successful/failed counts, not an all-or-nothing outcome. Failed status is
// reserved for runs where no user succeeded or the run itself aborted.
type Generation struct {
	ID          string           `json:"id"`
	Year        int              `json:"year"`
	Status      GenerationStatus `json:"status"`
	TotalUsers  int              `json:"total_users"`
	Successful  int              `json:"successful_count"`
	Failed      int              `json:"failed_count"`
	TriggeredBy string           `json:"triggered_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// AccessToken is a capability granting anonymous read access to exactly one
// UserYearStats. Created by the distribution layer when a generation's
// reports are published, never by the stats engine.
type AccessToken struct {
	Token        string     `json:"token"`
	GenerationID string     `json:"generation_id"`
	UserID       int        `json:"user_id"`
	Year         int        `json:"year"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

// Valid reports whether the token currently grants access.
func (t *AccessToken) Valid(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	if t.ExpiresAt != nil && now.After(*t.ExpiresAt) {
		return false
	}
	return true
}

// EmailStatus is the delivery outcome recorded in the email log.
type EmailStatus string

// Email delivery outcomes.
const (
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

// EmailLog records one report email delivery attempt.
type EmailLog struct {
	ID           string      `json:"id"`
	GenerationID string      `json:"generation_id"`
	UserID       int         `json:"user_id"`
	Recipient    string      `json:"recipient"`
	Status       EmailStatus `json:"status"`
	Error        string      `json:"error,omitempty"`
	SentAt       time.Time   `json:"sent_at"`
}
