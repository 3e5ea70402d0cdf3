// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/rewatched/rewatched/internal/auth"
	"github.com/rewatched/rewatched/internal/config"
	"github.com/rewatched/rewatched/internal/database"
	"github.com/rewatched/rewatched/internal/generation"
	"github.com/rewatched/rewatched/internal/models"
)

type fakeStore struct {
	generations map[string]*models.Generation
	emailLogs   map[string][]models.EmailLog
	stats       map[string]*models.UserYearStats // key "userID/year"
	tokens      map[string]*models.AccessToken
	pingErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		generations: make(map[string]*models.Generation),
		emailLogs:   make(map[string][]models.EmailLog),
		stats:       make(map[string]*models.UserYearStats),
		tokens:      make(map[string]*models.AccessToken),
	}
}

func statsKey(userID, year int) string { return fmt.Sprintf("%d/%d", userID, year) }

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) CreateGeneration(_ context.Context, year int, triggeredBy string) (*models.Generation, error) {
	gen := &models.Generation{
		ID:          fmt.Sprintf("gen-%d", len(s.generations)+1),
		Year:        year,
		Status:      models.GenerationPending,
		TriggeredBy: triggeredBy,
		CreatedAt:   time.Now().UTC(),
	}
	s.generations[gen.ID] = gen
	return gen, nil
}

func (s *fakeStore) GetGeneration(_ context.Context, id string) (*models.Generation, error) {
	gen, ok := s.generations[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return gen, nil
}

func (s *fakeStore) ListGenerations(_ context.Context, _ int) ([]models.Generation, error) {
	out := make([]models.Generation, 0, len(s.generations))
	for _, gen := range s.generations {
		out = append(out, *gen)
	}
	return out, nil
}

func (s *fakeStore) ListEmailLogs(_ context.Context, generationID string) ([]models.EmailLog, error) {
	return s.emailLogs[generationID], nil
}

func (s *fakeStore) GetYearStats(_ context.Context, userID, year int) (*models.UserYearStats, error) {
	st, ok := s.stats[statsKey(userID, year)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return st, nil
}

func (s *fakeStore) ListYearStats(_ context.Context, year int) ([]models.UserYearStats, error) {
	var out []models.UserYearStats
	for _, st := range s.stats {
		if st.Year == year {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAccessToken(_ context.Context, token string) (*models.AccessToken, error) {
	t, ok := s.tokens[token]
	if !ok {
		return nil, database.ErrNotFound
	}
	return t, nil
}

type fakeRunner struct {
	running        bool
	triggered      []*models.Generation
	triggerErr     error
	sent, failed   int
	distributeErr  error
	distributedFor []string
}

func (r *fakeRunner) Trigger(gen *models.Generation) error {
	if r.triggerErr != nil {
		return r.triggerErr
	}
	r.triggered = append(r.triggered, gen)
	return nil
}

func (r *fakeRunner) Running() bool { return r.running }

func (r *fakeRunner) Distribute(_ context.Context, gen *models.Generation) (int, int, error) {
	if r.distributeErr != nil {
		return 0, 0, r.distributeErr
	}
	r.distributedFor = append(r.distributedFor, gen.ID)
	return r.sent, r.failed, nil
}

type testEnv struct {
	store  *fakeStore
	runner *fakeRunner
	jwt    *auth.JWTManager
	server http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	security := &config.SecurityConfig{
		JWTSecret:         strings.Repeat("k", 32),
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
		SessionTimeout:    time.Hour,
		ShareRateLimit:    1000,
		ShareRateWindow:   time.Minute,
	}

	jwtManager, err := auth.NewJWTManager(security)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	credentials, err := auth.NewCredentialChecker(security)
	if err != nil {
		t.Fatalf("NewCredentialChecker: %v", err)
	}

	store := newFakeStore()
	runner := &fakeRunner{}
	handlers := NewHandlers(store, runner, jwtManager, credentials)
	return &testEnv{
		store:  store,
		runner: runner,
		jwt:    jwtManager,
		server: NewRouter(handlers, security).Routes(),
	}
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := e.jwt.GenerateToken("admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode envelope: %v (body: %s)", err, rec.Body.String())
	}
	return resp
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/login", "", models.LoginRequest{Username: "admin", Password: "correct horse"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "success" {
		t.Errorf("envelope status = %q", resp.Status)
	}

	raw, _ := json.Marshal(resp.Data)
	var login models.LoginResponse
	if err := json.Unmarshal(raw, &login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if login.Token == "" {
		t.Error("empty session token")
	}
	if _, err := env.jwt.ValidateToken(login.Token); err != nil {
		t.Errorf("issued token does not validate: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/login", "", models.LoginRequest{Username: "admin", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != errCodeUnauthorized {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	// Missing password fails validation.
	rec = env.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{"username": "admin"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing password: status = %d, want 400", rec.Code)
	}
}

func TestAdminEndpointsRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	paths := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/v1/generations"},
		{http.MethodGet, "/api/v1/generations"},
		{http.MethodGet, "/api/v1/generations/gen-1"},
		{http.MethodPost, "/api/v1/generations/gen-1/emails"},
		{http.MethodGet, "/api/v1/stats/2025"},
		{http.MethodGet, "/api/v1/stats/2025/user/7"},
	}
	for _, p := range paths {
		rec := env.do(t, p.method, p.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", p.method, p.path, rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/v1/generations", "garbage-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", rec.Code)
	}
}

func TestCreateGeneration(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	rec := env.do(t, http.MethodPost, "/api/v1/generations", token, models.GenerateRequest{Year: 2025, TriggeredBy: "admin"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(env.runner.triggered) != 1 {
		t.Fatalf("triggered %d runs, want 1", len(env.runner.triggered))
	}
	if env.runner.triggered[0].Year != 2025 {
		t.Errorf("triggered year = %d", env.runner.triggered[0].Year)
	}
	if len(env.store.generations) != 1 {
		t.Errorf("stored %d generations, want 1", len(env.store.generations))
	}
}

func TestCreateGenerationValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	for _, year := range []int{0, 1985, 2500} {
		rec := env.do(t, http.MethodPost, "/api/v1/generations", token, map[string]int{"year": year})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("year %d: status = %d, want 400", year, rec.Code)
		}
	}
	if len(env.runner.triggered) != 0 {
		t.Errorf("invalid requests triggered %d runs", len(env.runner.triggered))
	}
}

func TestCreateGenerationConflict(t *testing.T) {
	env := newTestEnv(t)
	env.runner.running = true
	token := env.adminToken(t)

	rec := env.do(t, http.MethodPost, "/api/v1/generations", token, models.GenerateRequest{Year: 2025})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if len(env.store.generations) != 0 {
		t.Error("generation row created despite conflict")
	}

	env.runner.running = false
	env.runner.triggerErr = generation.ErrRunInProgress
	rec = env.do(t, http.MethodPost, "/api/v1/generations", token, models.GenerateRequest{Year: 2025})
	if rec.Code != http.StatusConflict {
		t.Errorf("trigger conflict: status = %d, want 409", rec.Code)
	}
}

func TestGetGeneration(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	gen, _ := env.store.CreateGeneration(context.Background(), 2025, "admin")
	env.store.emailLogs[gen.ID] = []models.EmailLog{
		{GenerationID: gen.ID, UserID: 1, Recipient: "alice@example.com", Status: models.EmailSent},
	}

	rec := env.do(t, http.MethodGet, "/api/v1/generations/"+gen.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(resp.Data)
	var detail generationDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.ID != gen.ID || len(detail.Emails) != 1 {
		t.Errorf("detail = %+v", detail)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/generations/unknown", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestListGenerationsLimitValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	rec := env.do(t, http.MethodGet, "/api/v1/generations?limit=0", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0: status = %d, want 400", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/generations?limit=50", token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("limit=50: status = %d, want 200", rec.Code)
	}
}

func TestResendEmails(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)
	env.runner.sent, env.runner.failed = 3, 1

	gen, _ := env.store.CreateGeneration(context.Background(), 2025, "admin")
	gen.Status = models.GenerationCompleted

	rec := env.do(t, http.MethodPost, "/api/v1/generations/"+gen.ID+"/emails", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(resp.Data)
	var result resendResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Sent != 3 || result.Failed != 1 {
		t.Errorf("result = %+v, want 3/1", result)
	}
	if len(env.runner.distributedFor) != 1 || env.runner.distributedFor[0] != gen.ID {
		t.Errorf("distributed for %v", env.runner.distributedFor)
	}
}

func TestResendEmailsGuards(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)

	rec := env.do(t, http.MethodPost, "/api/v1/generations/unknown/emails", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown generation: status = %d, want 404", rec.Code)
	}

	gen, _ := env.store.CreateGeneration(context.Background(), 2025, "admin")
	rec = env.do(t, http.MethodPost, "/api/v1/generations/"+gen.ID+"/emails", token, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("pending generation: status = %d, want 409", rec.Code)
	}

	gen.Status = models.GenerationCompleted
	env.runner.distributeErr = generation.ErrEmailDisabled
	rec = env.do(t, http.MethodPost, "/api/v1/generations/"+gen.ID+"/emails", token, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("email disabled: status = %d, want 409", rec.Code)
	}

	env.runner.distributeErr = errors.New("smtp exploded")
	rec = env.do(t, http.MethodPost, "/api/v1/generations/"+gen.ID+"/emails", token, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("distribution error: status = %d, want 500", rec.Code)
	}
}

func TestGetUserStats(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)
	env.store.stats[statsKey(7, 2025)] = &models.UserYearStats{UserID: 7, Username: "alice", Year: 2025, TotalPlays: 42}

	rec := env.do(t, http.MethodGet, "/api/v1/stats/2025/user/7", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(resp.Data)
	var stats models.UserYearStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Username != "alice" || stats.TotalPlays != 42 {
		t.Errorf("stats = %+v", stats)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/stats/2025/user/99", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing report: status = %d, want 404", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/stats/banana/user/7", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad year: status = %d, want 400", rec.Code)
	}
}

func TestListYearStats(t *testing.T) {
	env := newTestEnv(t)
	token := env.adminToken(t)
	env.store.stats[statsKey(1, 2025)] = &models.UserYearStats{UserID: 1, Year: 2025}
	env.store.stats[statsKey(2, 2024)] = &models.UserYearStats{UserID: 2, Year: 2024}

	rec := env.do(t, http.MethodGet, "/api/v1/stats/2025", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(resp.Data)
	var all []models.UserYearStats
	if err := json.Unmarshal(raw, &all); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(all) != 1 || all[0].UserID != 1 {
		t.Errorf("list = %+v, want only user 1", all)
	}
}

func TestShare(t *testing.T) {
	env := newTestEnv(t)
	env.store.stats[statsKey(7, 2025)] = &models.UserYearStats{UserID: 7, Username: "alice", Year: 2025}
	env.store.tokens["good"] = &models.AccessToken{Token: "good", UserID: 7, Year: 2025}

	rec := env.do(t, http.MethodGet, "/share/good", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(resp.Data)
	var stats models.UserYearStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Username != "alice" {
		t.Errorf("stats = %+v", stats)
	}
}

func TestShareTokenStates(t *testing.T) {
	env := newTestEnv(t)
	env.store.stats[statsKey(7, 2025)] = &models.UserYearStats{UserID: 7, Year: 2025}

	past := time.Now().Add(-time.Hour)
	env.store.tokens["expired"] = &models.AccessToken{Token: "expired", UserID: 7, Year: 2025, ExpiresAt: &past}
	env.store.tokens["revoked"] = &models.AccessToken{Token: "revoked", UserID: 7, Year: 2025, RevokedAt: &past}
	env.store.tokens["orphan"] = &models.AccessToken{Token: "orphan", UserID: 99, Year: 2025}

	// Unknown, expired, revoked, and orphaned tokens all look identical.
	for _, token := range []string{"unknown", "expired", "revoked", "orphan"} {
		rec := env.do(t, http.MethodGet, "/share/"+token, "", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("token %q: status = %d, want 404", token, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	env.store.pingErr = errors.New("database gone")
	rec = env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("db down: status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output missing runtime collectors")
	}
}
