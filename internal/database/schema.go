// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package database

import (
	"context"
	"fmt"
)

// schemaStatements create the four tables. IDs are UUID strings minted in
// Go, which keeps the schema portable and avoids DuckDB sequences.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS generations (
		id VARCHAR PRIMARY KEY,
		year INTEGER NOT NULL,
		status VARCHAR NOT NULL,
		total_users INTEGER NOT NULL DEFAULT 0,
		successful_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		triggered_by VARCHAR,
		created_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		completed_at TIMESTAMP,
		error VARCHAR
	)`,

	// One report per user per year. Re-running a generation replaces the
	// document instead of stacking a second row.
	`CREATE TABLE IF NOT EXISTS year_stats (
		user_id INTEGER NOT NULL,
		username VARCHAR NOT NULL,
		year INTEGER NOT NULL,
		generation_id VARCHAR NOT NULL,
		stats JSON NOT NULL,
		generated_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, year)
	)`,

	`CREATE TABLE IF NOT EXISTS access_tokens (
		token VARCHAR PRIMARY KEY,
		generation_id VARCHAR NOT NULL,
		user_id INTEGER NOT NULL,
		year INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP,
		revoked_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS email_logs (
		id VARCHAR PRIMARY KEY,
		generation_id VARCHAR NOT NULL,
		user_id INTEGER NOT NULL,
		recipient VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		error VARCHAR,
		sent_at TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_year_stats_year ON year_stats (year)`,
	`CREATE INDEX IF NOT EXISTS idx_tokens_user_year ON access_tokens (user_id, year)`,
	`CREATE INDEX IF NOT EXISTS idx_email_logs_generation ON email_logs (generation_id)`,
}

func (db *DB) initialize() error {
	ctx, cancel := db.ensureContext(context.Background())
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
