// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

// Package generation runs the year-in-review batch: enumerate users, fetch
// each one's history, aggregate, persist, mint a share token, and
// optionally email the report link.
//
// Partial failure is the normal case, not an abort: one user's fetch
// failing is counted and the run continues. A run only reports failed when
// no user succeeded at all.
package generation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sourcegraph/conc/pool"

	"github.com/rewatched/rewatched/internal/config"
	"github.com/rewatched/rewatched/internal/database"
	"github.com/rewatched/rewatched/internal/logging"
	"github.com/rewatched/rewatched/internal/metrics"
	"github.com/rewatched/rewatched/internal/models"
	"github.com/rewatched/rewatched/internal/overseerr"
	"github.com/rewatched/rewatched/internal/stats"
	"github.com/rewatched/rewatched/internal/tautulli"
)

// Store is the persistence surface the orchestrator needs. *database.DB
// implements it; tests substitute an in-memory fake.
type Store interface {
	MarkGenerationStarted(ctx context.Context, id string, totalUsers int) error
	MarkGenerationFinished(ctx context.Context, id string, status models.GenerationStatus, successful, failed int, runErr string) error
	UpsertYearStats(ctx context.Context, generationID string, stats *models.UserYearStats) error
	GetYearStats(ctx context.Context, userID, year int) (*models.UserYearStats, error)
	CreateAccessToken(ctx context.Context, generationID string, userID, year int, ttl time.Duration) (*models.AccessToken, error)
	InsertEmailLog(ctx context.Context, entry *models.EmailLog) error
}

// Mailer delivers one report email. Nil disables distribution.
type Mailer interface {
	SendReport(ctx context.Context, recipient, username string, stats *models.UserYearStats, reportURL string) error
}

// Orchestrator coordinates one generation run end to end.
type Orchestrator struct {
	store    Store
	history  tautulli.HistorySource
	requests *overseerr.Client // nil when the integration is disabled
	engine   *stats.Engine
	mailer   Mailer // nil when email is disabled
	cfg      config.GenerationConfig
	baseURL  string
}

// New wires an orchestrator. requests and mailer may be nil; both are
// optional collaborators the run degrades without.
func New(store Store, history tautulli.HistorySource, requests *overseerr.Client, engine *stats.Engine, mailer Mailer, cfg config.GenerationConfig, baseURL string) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.FetchRetries <= 0 {
		cfg.FetchRetries = 5
	}
	if cfg.FetchRetryDelay <= 0 {
		cfg.FetchRetryDelay = 2 * time.Second
	}
	return &Orchestrator{
		store:    store,
		history:  history,
		requests: requests,
		engine:   engine,
		mailer:   mailer,
		cfg:      cfg,
		baseURL:  baseURL,
	}
}

// Run executes one generation. The generation row must already exist in
// pending state; Run owns the status transitions from there.
func (o *Orchestrator) Run(ctx context.Context, gen *models.Generation) error {
	started := time.Now()
	log := logging.Ctx(ctx).With().Str("generation_id", gen.ID).Int("year", gen.Year).Logger()

	users, err := o.history.ActiveUsers(ctx)
	if err != nil {
		msg := fmt.Sprintf("listing users: %v", err)
		if ferr := o.store.MarkGenerationFinished(ctx, gen.ID, models.GenerationFailed, 0, 0, msg); ferr != nil {
			log.Error().Err(ferr).Msg("failed to record aborted run")
		}
		return fmt.Errorf("listing users: %w", err)
	}

	if err := o.store.MarkGenerationStarted(ctx, gen.ID, len(users)); err != nil {
		return fmt.Errorf("marking generation started: %w", err)
	}
	log.Info().Int("users", len(users)).Msg("generation run started")

	extras := o.gatherExtras(ctx, gen.Year)

	var (
		mu         sync.Mutex
		successful int
		failed     int
	)
	p := pool.New().WithMaxGoroutines(o.cfg.Workers).WithContext(ctx)
	for _, user := range users {
		user := user
		p.Go(func(ctx context.Context) error {
			err := o.processUser(ctx, gen, user, extras)
			metrics.RecordGenerationUser(gen.Year, err)
			mu.Lock()
			if err != nil {
				failed++
			} else {
				successful++
			}
			mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Int("user_id", user.UserID).Str("user", user.Username).
					Msg("user generation failed")
			}
			// Per-user errors are absorbed here; returning one would cancel
			// the run for everyone else.
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		// Only context cancellation can surface here.
		msg := fmt.Sprintf("run aborted: %v", err)
		if ferr := o.store.MarkGenerationFinished(ctx, gen.ID, models.GenerationFailed, successful, failed, msg); ferr != nil {
			log.Error().Err(ferr).Msg("failed to record aborted run")
		}
		return err
	}

	status := models.GenerationCompleted
	runErr := ""
	if len(users) > 0 && successful == 0 {
		status = models.GenerationFailed
		runErr = "no user succeeded"
	}
	if err := o.store.MarkGenerationFinished(ctx, gen.ID, status, successful, failed, runErr); err != nil {
		return fmt.Errorf("marking generation finished: %w", err)
	}

	metrics.RecordGeneration(gen.Year, time.Since(started))
	log.Info().
		Int("successful", successful).
		Int("failed", failed).
		Dur("elapsed", time.Since(started)).
		Str("status", string(status)).
		Msg("generation run finished")
	return nil
}

// runExtras is the shared supplementary context for one run: server-wide
// library counts and per-user request tallies.
type runExtras struct {
	libraryMovies  int
	libraryShows   int
	libraryKnown   bool
	requestsByUser map[string]map[string]int
}

// gatherExtras collects best-effort supplementary data. Failures log and
// degrade; they never fail the run.
func (o *Orchestrator) gatherExtras(ctx context.Context, year int) *runExtras {
	extras := &runExtras{}

	movies, shows, err := o.history.LibraryCounts(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("library counts unavailable, reports omit library percentage")
	} else {
		extras.libraryMovies, extras.libraryShows, extras.libraryKnown = movies, shows, true
	}

	if o.requests != nil {
		byUser, err := o.requests.YearRequests(ctx, year)
		if err != nil {
			logging.Warn().Err(err).Msg("request counts unavailable, reports omit request facts")
		} else {
			extras.requestsByUser = byUser
		}
	}
	return extras
}

// forUser shapes the run-level extras into the per-user value the engine
// consumes. Returns nil when nothing is available, which is the engine's
// "no supplementary source" sentinel.
func (e *runExtras) forUser(username string) *models.LibraryExtras {
	requests := e.requestsByUser[username]
	if !e.libraryKnown && len(requests) == 0 {
		return nil
	}
	return &models.LibraryExtras{
		LibraryMovieCount: e.libraryMovies,
		LibraryShowCount:  e.libraryShows,
		RequestsByTitle:   requests,
	}
}

// processUser handles one user: fetch with retry, aggregate, persist,
// token, email.
func (o *Orchestrator) processUser(ctx context.Context, gen *models.Generation, user tautulli.User, extras *runExtras) error {
	var events []models.WatchEvent
	err := retry.Do(
		func() error {
			var ferr error
			events, ferr = o.history.FetchYearHistory(ctx, user.UserID, gen.Year)
			return ferr
		},
		retry.Context(ctx),
		retry.Attempts(uint(o.cfg.FetchRetries)),
		retry.Delay(o.cfg.FetchRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			metrics.HistoryFetchRetries.Inc()
			logging.Debug().Err(err).Uint("attempt", attempt).Int("user_id", user.UserID).
				Msg("retrying history fetch")
		}),
	)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}

	aggStart := time.Now()
	userStats, report := o.engine.Compute(gen.Year, events, extras.forUser(user.Username))
	metrics.AggregationDuration.Observe(time.Since(aggStart).Seconds())
	if report.SkippedMalformed > 0 {
		metrics.MalformedEvents.Add(float64(report.SkippedMalformed))
		logging.Debug().Int("user_id", user.UserID).Int("skipped", report.SkippedMalformed).
			Msg("skipped malformed history records")
	}

	userStats.UserID = user.UserID
	userStats.Username = user.Username

	if err := o.store.UpsertYearStats(ctx, gen.ID, userStats); err != nil {
		return fmt.Errorf("storing stats: %w", err)
	}

	token, err := o.store.CreateAccessToken(ctx, gen.ID, user.UserID, gen.Year, o.cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating share token: %w", err)
	}

	o.deliver(ctx, gen, user, userStats, token)
	return nil
}

// deliver sends the report email when a mailer and recipient exist. The
// returned error is a delivery failure only; the report itself succeeded
// and callers decide whether delivery failure matters.
func (o *Orchestrator) deliver(ctx context.Context, gen *models.Generation, user tautulli.User, userStats *models.UserYearStats, token *models.AccessToken) error {
	if o.mailer == nil || user.Email == "" {
		return nil
	}

	reportURL := fmt.Sprintf("%s/share/%s", o.baseURL, token.Token)
	entry := &models.EmailLog{
		GenerationID: gen.ID,
		UserID:       user.UserID,
		Recipient:    user.Email,
		Status:       models.EmailSent,
	}
	sendErr := o.mailer.SendReport(ctx, user.Email, user.Username, userStats, reportURL)
	if sendErr != nil {
		entry.Status = models.EmailFailed
		entry.Error = sendErr.Error()
		metrics.EmailsSent.WithLabelValues("failed").Inc()
		logging.Warn().Err(sendErr).Int("user_id", user.UserID).Msg("report email failed")
	} else {
		metrics.EmailsSent.WithLabelValues("sent").Inc()
	}
	if err := o.store.InsertEmailLog(ctx, entry); err != nil {
		logging.Warn().Err(err).Msg("failed to record email log entry")
	}
	return sendErr
}

// ErrEmailDisabled is returned by Distribute when no mailer is configured.
var ErrEmailDisabled = errors.New("email delivery is not configured")

// Distribute re-sends report emails for an existing generation using the
// stored stats. Fresh share tokens are minted; previously issued tokens
// stay valid. Users without a stored report or an email address are
// skipped.
func (o *Orchestrator) Distribute(ctx context.Context, gen *models.Generation) (sent, failed int, err error) {
	if o.mailer == nil {
		return 0, 0, ErrEmailDisabled
	}

	users, err := o.history.ActiveUsers(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("listing users: %w", err)
	}

	for _, user := range users {
		if user.Email == "" {
			continue
		}
		userStats, err := o.store.GetYearStats(ctx, user.UserID, gen.Year)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			return sent, failed, fmt.Errorf("loading stats for user %d: %w", user.UserID, err)
		}
		token, err := o.store.CreateAccessToken(ctx, gen.ID, user.UserID, gen.Year, o.cfg.TokenTTL)
		if err != nil {
			return sent, failed, fmt.Errorf("creating share token: %w", err)
		}
		if o.deliver(ctx, gen, user, userStats, token) != nil {
			failed++
		} else {
			sent++
		}
	}
	return sent, failed, nil
}
