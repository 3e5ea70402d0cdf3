// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rewatched/rewatched/internal/config"
	"github.com/rewatched/rewatched/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory: "256MB",
		Threads:   1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return db
}

func TestGenerationLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	gen, err := db.CreateGeneration(ctx, 2025, "admin")
	if err != nil {
		t.Fatalf("CreateGeneration: %v", err)
	}
	if gen.ID == "" || gen.Status != models.GenerationPending {
		t.Fatalf("unexpected new generation: %+v", gen)
	}

	if err := db.MarkGenerationStarted(ctx, gen.ID, 12); err != nil {
		t.Fatalf("MarkGenerationStarted: %v", err)
	}
	if err := db.MarkGenerationFinished(ctx, gen.ID, models.GenerationCompleted, 10, 2, ""); err != nil {
		t.Fatalf("MarkGenerationFinished: %v", err)
	}

	got, err := db.GetGeneration(ctx, gen.ID)
	if err != nil {
		t.Fatalf("GetGeneration: %v", err)
	}
	if got.Status != models.GenerationCompleted || got.TotalUsers != 12 ||
		got.Successful != 10 || got.Failed != 2 {
		t.Errorf("got %+v, want completed 10/2 of 12", got)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("expected started/completed timestamps")
	}

	if _, err := db.GetGeneration(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing generation error = %v, want ErrNotFound", err)
	}

	list, err := db.ListGenerations(ctx, 10)
	if err != nil {
		t.Fatalf("ListGenerations: %v", err)
	}
	if len(list) != 1 || list[0].ID != gen.ID {
		t.Errorf("list = %+v, want the one run", list)
	}
}

func TestYearStatsUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stats := &models.UserYearStats{
		UserID:       7,
		Username:     "alice",
		Year:         2025,
		TotalMinutes: 1200,
		TotalPlays:   20,
		TopMovies:    []models.ContentRank{{Rank: 1, Title: "Heat", RatingKey: "m1", Plays: 3, Minutes: 510}},
		FunFacts:     []models.FunFact{{Badge: models.BadgeMarathoner, Text: "x"}},
	}
	if err := db.UpsertYearStats(ctx, "gen-1", stats); err != nil {
		t.Fatalf("UpsertYearStats: %v", err)
	}

	got, err := db.GetYearStats(ctx, 7, 2025)
	if err != nil {
		t.Fatalf("GetYearStats: %v", err)
	}
	if got.TotalMinutes != 1200 || len(got.TopMovies) != 1 || got.TopMovies[0].Title != "Heat" {
		t.Errorf("got %+v", got)
	}

	// A re-run replaces the document rather than adding a row.
	stats.TotalMinutes = 1300
	if err := db.UpsertYearStats(ctx, "gen-2", stats); err != nil {
		t.Fatalf("second UpsertYearStats: %v", err)
	}
	got, err = db.GetYearStats(ctx, 7, 2025)
	if err != nil {
		t.Fatalf("GetYearStats after upsert: %v", err)
	}
	if got.TotalMinutes != 1300 {
		t.Errorf("TotalMinutes = %d, want the replaced value 1300", got.TotalMinutes)
	}

	list, err := db.ListYearStats(ctx, 2025)
	if err != nil {
		t.Fatalf("ListYearStats: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("list has %d rows, want 1", len(list))
	}

	if _, err := db.GetYearStats(ctx, 7, 2024); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing year error = %v, want ErrNotFound", err)
	}
}

func TestAccessTokens(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("no expiry", func(t *testing.T) {
		tok, err := db.CreateAccessToken(ctx, "gen-1", 7, 2025, 0)
		if err != nil {
			t.Fatalf("CreateAccessToken: %v", err)
		}
		if len(tok.Token) != 32 {
			t.Errorf("token length = %d, want 32 hex chars", len(tok.Token))
		}
		got, err := db.GetAccessToken(ctx, tok.Token)
		if err != nil {
			t.Fatalf("GetAccessToken: %v", err)
		}
		if got.ExpiresAt != nil {
			t.Error("zero TTL tokens must not expire")
		}
		if !got.Valid(time.Now().Add(24 * 365 * time.Hour)) {
			t.Error("token should stay valid indefinitely")
		}
	})

	t.Run("ttl and revocation", func(t *testing.T) {
		tok, err := db.CreateAccessToken(ctx, "gen-1", 7, 2025, time.Hour)
		if err != nil {
			t.Fatalf("CreateAccessToken: %v", err)
		}
		got, err := db.GetAccessToken(ctx, tok.Token)
		if err != nil {
			t.Fatalf("GetAccessToken: %v", err)
		}
		if got.ExpiresAt == nil {
			t.Fatal("expected an expiry")
		}
		if got.Valid(time.Now().Add(2 * time.Hour)) {
			t.Error("token should be invalid past its expiry")
		}

		if err := db.RevokeAccessToken(ctx, tok.Token); err != nil {
			t.Fatalf("RevokeAccessToken: %v", err)
		}
		got, err = db.GetAccessToken(ctx, tok.Token)
		if err != nil {
			t.Fatalf("GetAccessToken after revoke: %v", err)
		}
		if got.RevokedAt == nil || got.Valid(time.Now()) {
			t.Error("revoked token must be invalid")
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		if _, err := db.GetAccessToken(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
		if err := db.RevokeAccessToken(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("revoke error = %v, want ErrNotFound", err)
		}
	})
}

func TestEmailLogs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	entries := []models.EmailLog{
		{GenerationID: "gen-1", UserID: 7, Recipient: "alice@example.com", Status: models.EmailSent},
		{GenerationID: "gen-1", UserID: 8, Recipient: "bob@example.com", Status: models.EmailFailed, Error: "mailbox full"},
		{GenerationID: "gen-2", UserID: 7, Recipient: "alice@example.com", Status: models.EmailSent},
	}
	for i := range entries {
		if err := db.InsertEmailLog(ctx, &entries[i]); err != nil {
			t.Fatalf("InsertEmailLog: %v", err)
		}
	}

	got, err := db.ListEmailLogs(ctx, "gen-1")
	if err != nil {
		t.Fatalf("ListEmailLogs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[1].Status != models.EmailFailed || got[1].Error != "mailbox full" {
		t.Errorf("failed entry = %+v", got[1])
	}
}
