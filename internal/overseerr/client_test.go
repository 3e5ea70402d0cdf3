// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package overseerr

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rewatched/rewatched/internal/config"
)

func enabledConfig(url string) *config.OverseerrConfig {
	return &config.OverseerrConfig{
		Enabled: true,
		URL:     url,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}
}

func TestNewClientDisabled(t *testing.T) {
	if c := NewClient(&config.OverseerrConfig{Enabled: false, URL: "http://x"}); c != nil {
		t.Error("disabled config should yield a nil client")
	}
	if c := NewClient(&config.OverseerrConfig{Enabled: true}); c != nil {
		t.Error("missing URL should yield a nil client")
	}
}

func TestPingSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("X-Api-Key = %q, want test-key", got)
		}
		if r.URL.Path != "/api/v1/status" {
			t.Errorf("path = %q, want /api/v1/status", r.URL.Path)
		}
		fmt.Fprint(w, `{"version":"1.33.2"}`)
	}))
	defer srv.Close()

	if err := NewClient(enabledConfig(srv.URL)).Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestYearRequests(t *testing.T) {
	req := func(id int, user, title, created string) string {
		return fmt.Sprintf(`{"id":%d,"status":2,"createdAt":%q,"requestedBy":{"plexUsername":%q},"media":{"title":%q,"mediaType":"movie"}}`,
			id, created, user, title)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		if skip > 0 {
			t.Errorf("unexpected second page at skip=%d", skip)
		}
		fmt.Fprintf(w, `{"pageInfo":{"pages":1,"results":5},"results":[%s]}`,
			req(1, "alice", "Dune", "2025-02-01T10:00:00Z")+","+
				req(2, "alice", "Dune", "2025-02-02T10:00:00Z")+","+
				req(3, "bob", "Heat", "2025-03-01T10:00:00Z")+","+
				req(4, "alice", "Old", "2024-12-01T10:00:00Z")+","+ // wrong year
				req(5, "", "Orphan", "2025-04-01T10:00:00Z")) // no username
	}))
	defer srv.Close()

	got, err := NewClient(enabledConfig(srv.URL)).YearRequests(context.Background(), 2025)
	if err != nil {
		t.Fatalf("YearRequests: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d users, want 2", len(got))
	}
	if got["alice"]["Dune"] != 2 {
		t.Errorf("alice Dune count = %d, want 2", got["alice"]["Dune"])
	}
	if len(got["alice"]) != 1 {
		t.Errorf("alice titles = %v, want only the 2025 request", got["alice"])
	}
	if got["bob"]["Heat"] != 1 {
		t.Errorf("bob Heat count = %d, want 1", got["bob"]["Heat"])
	}
}

func TestYearRequestsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := NewClient(enabledConfig(srv.URL)).YearRequests(context.Background(), 2025); err == nil {
		t.Fatal("expected an error for a 403 response")
	}
}
