// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rewatched/rewatched/internal/models"
)

// newShareToken mints a 128-bit random URL-safe token.
func newShareToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateAccessToken mints and stores a share token for one user-year
// report. ttl of zero means the token never expires.
func (db *DB) CreateAccessToken(ctx context.Context, generationID string, userID, year int, ttl time.Duration) (*models.AccessToken, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	token, err := newShareToken()
	if err != nil {
		return nil, err
	}

	at := &models.AccessToken{
		Token:        token,
		GenerationID: generationID,
		UserID:       userID,
		Year:         year,
		CreatedAt:    time.Now().UTC(),
	}
	if ttl > 0 {
		exp := at.CreatedAt.Add(ttl)
		at.ExpiresAt = &exp
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO access_tokens (token, generation_id, user_id, year, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		at.Token, at.GenerationID, at.UserID, at.Year, at.CreatedAt, at.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	return at, nil
}

// GetAccessToken returns a token row by value, or ErrNotFound. Validity
// (expiry, revocation) is the caller's check via AccessToken.Valid.
func (db *DB) GetAccessToken(ctx context.Context, token string) (*models.AccessToken, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		at        models.AccessToken
		expiresAt sql.NullTime
		revokedAt sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT token, generation_id, user_id, year, created_at, expires_at, revoked_at
		 FROM access_tokens WHERE token = ?`, token).
		Scan(&at.Token, &at.GenerationID, &at.UserID, &at.Year, &at.CreatedAt, &expiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load access token: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		at.ExpiresAt = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time.UTC()
		at.RevokedAt = &t
	}
	return &at, nil
}

// RevokeAccessToken marks a token revoked. Revoking an already revoked
// token is a no-op; an unknown token returns ErrNotFound.
func (db *DB) RevokeAccessToken(ctx context.Context, token string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE access_tokens SET revoked_at = COALESCE(revoked_at, ?) WHERE token = ?`,
		time.Now().UTC(), token)
	if err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revoke result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
