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

	"github.com/google/uuid"

	"github.com/rewatched/rewatched/internal/models"
)

// CreateGeneration inserts a new pending run and returns it with its ID.
func (db *DB) CreateGeneration(ctx context.Context, year int, triggeredBy string) (*models.Generation, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	gen := &models.Generation{
		ID:          uuid.NewString(),
		Year:        year,
		Status:      models.GenerationPending,
		TriggeredBy: triggeredBy,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO generations (id, year, status, triggered_by, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		gen.ID, gen.Year, string(gen.Status), gen.TriggeredBy, gen.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation: %w", err)
	}
	return gen, nil
}

// MarkGenerationStarted transitions a run to processing.
func (db *DB) MarkGenerationStarted(ctx context.Context, id string, totalUsers int) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE generations SET status = ?, total_users = ?, started_at = ? WHERE id = ?`,
		string(models.GenerationProcessing), totalUsers, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark generation started: %w", err)
	}
	return nil
}

// MarkGenerationFinished records the terminal state and outcome counts.
func (db *DB) MarkGenerationFinished(ctx context.Context, id string, status models.GenerationStatus, successful, failed int, runErr string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE generations
		 SET status = ?, successful_count = ?, failed_count = ?, completed_at = ?, error = ?
		 WHERE id = ?`,
		string(status), successful, failed, time.Now().UTC(), runErr, id)
	if err != nil {
		return fmt.Errorf("failed to mark generation finished: %w", err)
	}
	return nil
}

// GetGeneration returns one run by ID, or ErrNotFound.
func (db *DB) GetGeneration(ctx context.Context, id string) (*models.Generation, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, year, status, total_users, successful_count, failed_count,
		        triggered_by, created_at, started_at, completed_at, error
		 FROM generations WHERE id = ?`, id)
	return scanGeneration(row)
}

// ListGenerations returns runs newest-first, bounded by limit.
func (db *DB) ListGenerations(ctx context.Context, limit int) ([]models.Generation, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, year, status, total_users, successful_count, failed_count,
		        triggered_by, created_at, started_at, completed_at, error
		 FROM generations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	gens := make([]models.Generation, 0, limit)
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		gens = append(gens, *gen)
	}
	return gens, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(s scanner) (*models.Generation, error) {
	var (
		gen         models.Generation
		status      string
		triggeredBy sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
		runErr      sql.NullString
	)
	err := s.Scan(&gen.ID, &gen.Year, &status, &gen.TotalUsers, &gen.Successful,
		&gen.Failed, &triggeredBy, &gen.CreatedAt, &startedAt, &completedAt, &runErr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan generation: %w", err)
	}

	gen.Status = models.GenerationStatus(status)
	gen.TriggeredBy = triggeredBy.String
	gen.Error = runErr.String
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		gen.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		gen.CompletedAt = &t
	}
	return &gen, nil
}
