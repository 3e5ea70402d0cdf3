// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

// Package main is the entry point for the Rewatched server.
//
// Rewatched builds personalized year-in-review reports for every active
// user of a Plex media server, using Tautulli as the watch-history source
// and optionally Overseerr for request counts. Reports are persisted in
// DuckDB, exposed over an admin HTTP API, shared through tokenized public
// links, and optionally delivered by email.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, config file, environment)
//  2. Logging (zerolog)
//  3. Database (DuckDB)
//  4. Tautulli client behind a circuit breaker; optional Overseerr client
//  5. Stats engine and generation orchestrator
//  6. HTTP API (chi)
//  7. Supervisor tree (suture) hosting the HTTP server and the runner
//
// The server shuts down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewatched/rewatched/internal/api"
	"github.com/rewatched/rewatched/internal/auth"
	"github.com/rewatched/rewatched/internal/config"
	"github.com/rewatched/rewatched/internal/database"
	"github.com/rewatched/rewatched/internal/generation"
	"github.com/rewatched/rewatched/internal/logging"
	"github.com/rewatched/rewatched/internal/mailer"
	"github.com/rewatched/rewatched/internal/overseerr"
	"github.com/rewatched/rewatched/internal/stats"
	"github.com/rewatched/rewatched/internal/supervisor"
	"github.com/rewatched/rewatched/internal/tautulli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println("rewatched", version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("version", version).Msg("starting rewatched")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config) error {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close database")
		}
	}()

	history := tautulli.NewBreaker(&cfg.Tautulli)
	if err := history.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("failed to reach Tautulli (will retry on demand)")
	} else {
		logging.Info().Str("url", cfg.Tautulli.URL).Msg("connected to Tautulli")
	}

	requests := overseerr.NewClient(&cfg.Overseerr)
	if requests != nil {
		if err := requests.Ping(context.Background()); err != nil {
			logging.Warn().Err(err).Msg("failed to reach Overseerr (request facts degrade)")
		}
	} else {
		logging.Info().Msg("Overseerr integration disabled")
	}

	location, err := statsLocation(cfg.Stats.Timezone)
	if err != nil {
		return err
	}
	engine := stats.NewEngine(stats.Options{
		BingeGap:      cfg.Stats.BingeGap,
		TopContentCap: cfg.Stats.TopContentCap,
		TopTagCap:     cfg.Stats.TopTagCap,
		MaxFunFacts:   cfg.Stats.MaxFunFacts,
		Location:      location,
	})

	reportMailer, err := mailer.New(cfg.Email)
	if err != nil {
		return fmt.Errorf("configuring email: %w", err)
	}
	var delivery generation.Mailer
	if reportMailer != nil {
		delivery = reportMailer
		logging.Info().Str("host", cfg.Email.Host).Msg("email delivery enabled")
	} else {
		logging.Info().Msg("email delivery disabled")
	}

	orchestrator := generation.New(db, history, requests, engine, delivery, cfg.Generation, cfg.Server.BaseURL)
	runner := generation.NewService(orchestrator)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("configuring sessions: %w", err)
	}
	credentials, err := auth.NewCredentialChecker(&cfg.Security)
	if err != nil {
		return fmt.Errorf("configuring admin credentials: %w", err)
	}

	handlers := api.NewHandlers(db, runner, jwtManager, credentials)
	router := api.NewRouter(handlers, &cfg.Security)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree := supervisor.New(supervisor.DefaultConfig())
	tree.Add(runner)
	tree.Add(supervisor.NewHTTPService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("http server listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logging.Info().Msg("shutdown complete")
	return nil
}

func statsLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid stats timezone %q: %w", timezone, err)
	}
	return location, nil
}
