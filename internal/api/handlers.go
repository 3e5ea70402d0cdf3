// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/rewatched/rewatched/internal/auth"
	"github.com/rewatched/rewatched/internal/database"
	"github.com/rewatched/rewatched/internal/generation"
	"github.com/rewatched/rewatched/internal/logging"
	"github.com/rewatched/rewatched/internal/models"
)

// maxBodySize bounds request bodies; the largest legitimate request is a
// small JSON object.
const maxBodySize = 64 * 1024

// Store is the persistence surface the handlers need. *database.DB
// implements it.
type Store interface {
	Ping(ctx context.Context) error
	CreateGeneration(ctx context.Context, year int, triggeredBy string) (*models.Generation, error)
	GetGeneration(ctx context.Context, id string) (*models.Generation, error)
	ListGenerations(ctx context.Context, limit int) ([]models.Generation, error)
	ListEmailLogs(ctx context.Context, generationID string) ([]models.EmailLog, error)
	GetYearStats(ctx context.Context, userID, year int) (*models.UserYearStats, error)
	ListYearStats(ctx context.Context, year int) ([]models.UserYearStats, error)
	GetAccessToken(ctx context.Context, token string) (*models.AccessToken, error)
}

// Runner is the generation service surface the handlers need.
// *generation.Service implements it.
type Runner interface {
	Trigger(gen *models.Generation) error
	Running() bool
	Distribute(ctx context.Context, gen *models.Generation) (sent, failed int, err error)
}

// Handlers bundles the dependencies behind the HTTP endpoints.
type Handlers struct {
	store       Store
	runner      Runner
	jwt         *auth.JWTManager
	credentials *auth.CredentialChecker
	validate    *validator.Validate
}

// NewHandlers wires the handler set.
func NewHandlers(store Store, runner Runner, jwt *auth.JWTManager, credentials *auth.CredentialChecker) *Handlers {
	return &Handlers{
		store:       store,
		runner:      runner,
		jwt:         jwt,
		credentials: credentials,
		validate:    validator.New(),
	}
}

// decodeBody decodes and validates a JSON request body.
func (h *Handlers) decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

// Login exchanges admin credentials for a session token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.LoginRequest
	if err := h.decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errCodeBadRequest, "invalid login request", start)
		return
	}

	if err := h.credentials.Check(req.Username, req.Password); err != nil {
		logging.Warn().Str("username", req.Username).Msg("failed login attempt")
		respondError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid credentials", start)
		return
	}

	token, expires, err := h.jwt.GenerateToken(req.Username)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errCodeInternal, "failed to create session", start)
		return
	}
	respondJSON(w, http.StatusOK, models.LoginResponse{Token: token, ExpiresAt: expires}, start)
}

// CreateGeneration starts a generation run. The run executes in the
// background; the response is the pending generation record.
func (h *Handlers) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req models.GenerateRequest
	if err := h.decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errCodeBadRequest, "invalid generation request", start)
		return
	}
	if h.runner.Running() {
		respondError(w, http.StatusConflict, errCodeConflict, "a generation run is already in progress", start)
		return
	}

	gen, err := h.store.CreateGeneration(r.Context(), req.Year, req.TriggeredBy)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errCodeInternal, "failed to create generation", start)
		return
	}
	if err := h.runner.Trigger(gen); err != nil {
		respondError(w, http.StatusConflict, errCodeConflict, err.Error(), start)
		return
	}

	logging.Info().Str("generation_id", gen.ID).Int("year", gen.Year).Str("triggered_by", gen.TriggeredBy).
		Msg("generation run accepted")
	respondJSON(w, http.StatusAccepted, gen, start)
}

// ListGenerations returns recent generation runs, newest first.
func (h *Handlers) ListGenerations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, errCodeBadRequest, "limit must be between 1 and 500", start)
			return
		}
		limit = n
	}

	gens, err := h.store.ListGenerations(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errCodeInternal, "failed to list generations", start)
		return
	}
	respondJSON(w, http.StatusOK, gens, start)
}

// generationDetail is a generation with its email delivery log.
type generationDetail struct {
	models.Generation
	Emails []models.EmailLog `json:"emails"`
}

// GetGeneration returns one generation run with its email log.
func (h *Handlers) GetGeneration(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	gen, err := h.store.GetGeneration(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errCodeNotFound, "generation not found", start)
			return
		}
		respondError(w, http.StatusInternalServerError, errCodeInternal, "failed to load generation", start)
		return
	}

	emails, err := h.store.ListEmailLogs(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errCodeInternal, "failed to load email log", start)
		return
	}
	if emails == nil {
		emails = []models.EmailLog{}
	}
	respondJSON(w, http.StatusOK, generationDetail{Generation: *gen, Emails: emails}, start)
}

// resendResult is the response body of ResendEmails.
type resendResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// ResendEmails re-sends report emails for a completed generation.
func (h *Handlers) ResendEmails(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")

	gen, err := h.store.GetGeneration(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errCodeNotFound, "generation not found", start)
			return
		}
		respondError(w, http.StatusInternalServerError, errCodeInternal, "failed to load generation", start)
		return
	}
	if gen.Status != models.GenerationCompleted {
		respondError(w, http.StatusConflict, errCodeConflict, "generation has not completed", start)
		return
	}

	sent, failed, err := h.runner.Distribute(r.Context(), gen)
	if err != nil {
		if errors.Is(err, generation.ErrEmailDisabled) {
			respondError(w, http.StatusConflict, errCodeConflict, err.Error(), start)
			return
		}
		respondError(w, http.StatusInternalServerError, errCodeInternal, "email distribution failed", start)
		return
	}
	respondJSON(w, http.StatusOK, resendResult{Sent: sent, Failed: failed}, start)
}

// ListYearStats returns all stored reports for a year.
func (h *Handlers) ListYearStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errCodeBadRequest, "invalid year", start)
		return
	}

	all, err := h.store.ListYearStats(r.Context(), year)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errCodeInternal, "failed to list stats", start)
		return
	}
	if all == nil {
		all = []models.UserYearStats{}
	}
	respondJSON(w, http.StatusOK, all, start)
}

// GetUserStats returns one user's stored report.
func (h *Handlers) GetUserStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errCodeBadRequest, "invalid year", start)
		return
	}
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, errCodeBadRequest, "invalid user ID", start)
		return
	}

	stats, err := h.store.GetYearStats(r.Context(), userID, year)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errCodeNotFound, "no report for this user and year", start)
			return
		}
		respondError(w, http.StatusInternalServerError, errCodeInternal, "failed to load stats", start)
		return
	}
	respondJSON(w, http.StatusOK, stats, start)
}

// Share serves a report through an access token. Unknown, expired, and
// revoked tokens are indistinguishable from the outside.
func (h *Handlers) Share(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	raw := chi.URLParam(r, "token")

	token, err := h.store.GetAccessToken(r.Context(), raw)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errCodeNotFound, "report not found", start)
			return
		}
		respondError(w, http.StatusInternalServerError, errCodeInternal, "failed to resolve token", start)
		return
	}
	if !token.Valid(time.Now()) {
		respondError(w, http.StatusNotFound, errCodeNotFound, "report not found", start)
		return
	}

	stats, err := h.store.GetYearStats(r.Context(), token.UserID, token.Year)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errCodeNotFound, "report not found", start)
			return
		}
		respondError(w, http.StatusInternalServerError, errCodeInternal, "failed to load report", start)
		return
	}
	respondJSON(w, http.StatusOK, stats, start)
}

// Healthz reports liveness and database reachability.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, errCodeInternal, "database unreachable", start)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, start)
}
