// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/rewatched/rewatched/internal/models"
)

// UpsertYearStats stores one user-year report document, replacing any
// previous document for the same (user, year). The JSON document is the
// engine's output verbatim, so re-running the same input produces a
// byte-identical column value.
func (db *DB) UpsertYearStats(ctx context.Context, generationID string, stats *models.UserYearStats) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	doc, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal year stats: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO year_stats (user_id, username, year, generation_id, stats, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, year) DO UPDATE SET
		   username = excluded.username,
		   generation_id = excluded.generation_id,
		   stats = excluded.stats,
		   generated_at = excluded.generated_at`,
		stats.UserID, stats.Username, stats.Year, generationID, string(doc), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert year stats: %w", err)
	}
	return nil
}

// GetYearStats returns one user's report for a year, or ErrNotFound.
func (db *DB) GetYearStats(ctx context.Context, userID, year int) (*models.UserYearStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var doc string
	err := db.conn.QueryRowContext(ctx,
		`SELECT stats FROM year_stats WHERE user_id = ? AND year = ?`,
		userID, year).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load year stats: %w", err)
	}
	return unmarshalStats(doc)
}

// ListYearStats returns all reports for a year ordered by username.
func (db *DB) ListYearStats(ctx context.Context, year int) ([]models.UserYearStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT stats FROM year_stats WHERE year = ? ORDER BY username`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list year stats: %w", err)
	}
	defer rows.Close()

	var out []models.UserYearStats
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan year stats row: %w", err)
		}
		stats, err := unmarshalStats(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *stats)
	}
	return out, rows.Err()
}

func unmarshalStats(doc string) (*models.UserYearStats, error) {
	var stats models.UserYearStats
	if err := json.Unmarshal([]byte(doc), &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal year stats: %w", err)
	}
	return &stats, nil
}
