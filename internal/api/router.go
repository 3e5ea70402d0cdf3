// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rewatched/rewatched/internal/config"
	"github.com/rewatched/rewatched/internal/middleware"
)

// Router builds the HTTP handler tree.
type Router struct {
	handlers *Handlers
	security *config.SecurityConfig
}

// NewRouter wires a router.
func NewRouter(handlers *Handlers, security *config.SecurityConfig) *Router {
	return &Router{handlers: handlers, security: security}
}

// Routes assembles the chi router.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.corsOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Metrics)

	r.Get("/healthz", rt.handlers.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public share endpoint. Token guessing is the threat model here, so
	// the rate limit is per client IP and deliberately tight.
	r.Route("/share", func(r chi.Router) {
		r.Use(httprate.Limit(
			rt.shareRateLimit(),
			rt.shareRateWindow(),
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
		r.Get("/{token}", rt.handlers.Share)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Login gets brute-force rate limiting.
		r.With(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
			Post("/login", rt.handlers.Login)

		r.Group(func(r chi.Router) {
			r.Use(rt.handlers.Authenticate)

			r.Post("/generations", rt.handlers.CreateGeneration)
			r.Get("/generations", rt.handlers.ListGenerations)
			r.Get("/generations/{id}", rt.handlers.GetGeneration)
			r.Post("/generations/{id}/emails", rt.handlers.ResendEmails)

			r.Get("/stats/{year}", rt.handlers.ListYearStats)
			r.Get("/stats/{year}/user/{userID}", rt.handlers.GetUserStats)
		})
	})

	return r
}

func (rt *Router) corsOrigins() []string {
	if len(rt.security.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return rt.security.CORSOrigins
}

func (rt *Router) shareRateLimit() int {
	if rt.security.ShareRateLimit <= 0 {
		return 30
	}
	return rt.security.ShareRateLimit
}

func (rt *Router) shareRateWindow() time.Duration {
	if rt.security.ShareRateWindow <= 0 {
		return time.Minute
	}
	return rt.security.ShareRateWindow
}
