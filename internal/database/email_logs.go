// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rewatched/rewatched/internal/models"
)

// InsertEmailLog records one delivery attempt.
func (db *DB) InsertEmailLog(ctx context.Context, entry *models.EmailLog) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO email_logs (id, generation_id, user_id, recipient, status, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.GenerationID, entry.UserID, entry.Recipient,
		string(entry.Status), entry.Error, entry.SentAt)
	if err != nil {
		return fmt.Errorf("failed to insert email log: %w", err)
	}
	return nil
}

// ListEmailLogs returns the delivery log for one generation, oldest first.
func (db *DB) ListEmailLogs(ctx context.Context, generationID string) ([]models.EmailLog, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, generation_id, user_id, recipient, status, error, sent_at
		 FROM email_logs WHERE generation_id = ? ORDER BY sent_at`, generationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list email logs: %w", err)
	}
	defer rows.Close()

	var out []models.EmailLog
	for rows.Next() {
		var (
			entry   models.EmailLog
			status  string
			sendErr sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.GenerationID, &entry.UserID,
			&entry.Recipient, &status, &sendErr, &entry.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan email log: %w", err)
		}
		entry.Status = models.EmailStatus(status)
		entry.Error = sendErr.String
		out = append(out, entry)
	}
	return out, rows.Err()
}
