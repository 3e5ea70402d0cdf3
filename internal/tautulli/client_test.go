// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package tautulli

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rewatched/rewatched/internal/config"
	"github.com/rewatched/rewatched/internal/models"
)

func testConfig(url string) *config.TautulliConfig {
	return &config.TautulliConfig{
		URL:           url,
		APIKey:        "test-key",
		Timeout:       5 * time.Second,
		PageSize:      2,
		RatePerSecond: 1000,
		RateBurst:     1000,
	}
}

func historyPage(records string, filtered int) string {
	return fmt.Sprintf(`{"response":{"result":"success","data":{"recordsFiltered":%d,"recordsTotal":%d,"data":[%s]}}}`,
		filtered, filtered, records)
}

func movieRecord(ratingKey int, started int64, durationSec int) string {
	return fmt.Sprintf(`{"media_type":"movie","rating_key":%d,"title":"Movie %d","started":%d,"duration":%d,"transcode_decision":"direct play","platform":"tvOS","player":"Living Room"}`,
		ratingKey, ratingKey, started, durationSec)
}

func TestFetchYearHistoryPaginates(t *testing.T) {
	var requests []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("cmd"); got != "get_history" {
			t.Errorf("cmd = %q, want get_history", got)
		}
		if got := r.URL.Query().Get("grouping"); got != "0" {
			t.Errorf("grouping = %q, want 0 (grouped rows hide sessions)", got)
		}
		if got := r.URL.Query().Get("user_id"); got != "42" {
			t.Errorf("user_id = %q, want 42", got)
		}

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		requests = append(requests, start)

		base := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC).Unix()
		var body string
		switch start {
		case 0:
			body = historyPage(
				movieRecord(1, base, 6000)+","+movieRecord(2, base+7200, 6000), 3)
		case 2:
			body = historyPage(movieRecord(3, base+14400, 6000), 3)
		default:
			t.Errorf("unexpected start offset %d", start)
			body = historyPage("", 3)
		}
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	events, err := client.FetchYearHistory(context.Background(), 42, 2025)
	if err != nil {
		t.Fatalf("FetchYearHistory: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if len(requests) != 2 {
		t.Errorf("made %d requests, want 2 pages", len(requests))
	}
	if events[0].RatingKey != "1" || events[0].WatchedMinutes != 100 {
		t.Errorf("first event = %+v, want rating key 1 / 100 minutes", events[0])
	}
}

func TestFetchYearHistoryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"result":"error","message":"Invalid apikey"}}`)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	if _, err := client.FetchYearHistory(context.Background(), 42, 2025); err == nil {
		t.Fatal("expected an error for an API-level failure")
	}
}

func TestDoRequestRetriesRateLimit(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, historyPage("", 0))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	events, err := client.FetchYearHistory(context.Background(), 1, 2025)
	if err != nil {
		t.Fatalf("expected recovery after 429s, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
}

func TestPingSendsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("apikey"); got != "test-key" {
			t.Errorf("apikey = %q, want test-key", got)
		}
		if got := r.URL.Query().Get("cmd"); got != "arnold" {
			t.Errorf("cmd = %q, want arnold", got)
		}
		fmt.Fprint(w, `{"response":{"result":"success"}}`)
	}))
	defer srv.Close()

	if err := NewClient(testConfig(srv.URL)).Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestActiveUsersFiltering(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"result":"success","data":[
			{"user_id":0,"username":"Local","is_active":1,"keep_history":1},
			{"user_id":1,"username":"alice","is_active":1,"keep_history":1},
			{"user_id":2,"username":"bob","is_active":0,"keep_history":1},
			{"user_id":3,"username":"carol","is_active":1,"keep_history":0}
		]}}`)
	}))
	defer srv.Close()

	users, err := NewClient(testConfig(srv.URL)).ActiveUsers(context.Background())
	if err != nil {
		t.Fatalf("ActiveUsers: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Errorf("got %+v, want just alice", users)
	}
}

func TestLibraryCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"result":"success","data":[
			{"section_id":"1","section_name":"Movies","section_type":"movie","count":"812"},
			{"section_id":"2","section_name":"TV","section_type":"show","count":"144"},
			{"section_id":"3","section_name":"Music","section_type":"artist","count":"999"}
		]}}`)
	}))
	defer srv.Close()

	movies, shows, err := NewClient(testConfig(srv.URL)).LibraryCounts(context.Background())
	if err != nil {
		t.Fatalf("LibraryCounts: %v", err)
	}
	if movies != 812 || shows != 144 {
		t.Errorf("counts = %d/%d, want 812/144 (music ignored)", movies, shows)
	}
}

func TestMapRecord(t *testing.T) {
	t.Run("episode fields", func(t *testing.T) {
		show := "The Wire"
		showKey, season, ep, dur, year := 100, 1, 3, 3540, 2002
		rec := &HistoryRecord{
			MediaType:            "episode",
			RatingKey:            intPtr(101),
			Title:                "The Buys",
			GrandparentTitle:     &show,
			GrandparentRatingKey: &showKey,
			ParentMediaIndex:     &season,
			MediaIndex:           &ep,
			Year:                 &year,
			Started:              time.Date(2025, 3, 1, 19, 0, 0, 0, time.UTC).Unix(),
			Duration:             &dur,
			TranscodeDecision:    "copy",
			Genres:               "Crime, Drama",
			Actors:               " Dominic West ,Idris Elba,",
			Platform:             "Android",
			Device:               "Pixel",
		}
		ev, ok := mapRecord(rec)
		if !ok {
			t.Fatal("expected the record to map")
		}
		if ev.Kind != models.KindEpisode || ev.ShowTitle != "The Wire" || ev.ShowRatingKey != "100" {
			t.Errorf("show linkage = %+v", ev)
		}
		if ev.Season != 1 || ev.Episode != 3 {
			t.Errorf("S%dE%d, want S1E3", ev.Season, ev.Episode)
		}
		if ev.WatchedMinutes != 59 {
			t.Errorf("WatchedMinutes = %v, want 59", ev.WatchedMinutes)
		}
		if ev.Decision != models.PlayDirectStream {
			t.Errorf("Decision = %q, want direct stream (copy is a remux)", ev.Decision)
		}
		if len(ev.Genres) != 2 || ev.Genres[0] != "Crime" {
			t.Errorf("Genres = %v", ev.Genres)
		}
		if len(ev.Actors) != 2 || ev.Actors[0] != "Dominic West" {
			t.Errorf("Actors = %v, want trimmed names without empties", ev.Actors)
		}
		if ev.Device != "Pixel" {
			t.Errorf("Device = %q, want the device model when no player name", ev.Device)
		}
	})

	t.Run("non-video media types skipped", func(t *testing.T) {
		for _, mt := range []string{"track", "live", "photo", "clip"} {
			if _, ok := mapRecord(&HistoryRecord{MediaType: mt, Title: "x"}); ok {
				t.Errorf("media type %q mapped, want skipped", mt)
			}
		}
	})

	t.Run("nil fields survive", func(t *testing.T) {
		ev, ok := mapRecord(&HistoryRecord{MediaType: "movie", Title: "Heat"})
		if !ok {
			t.Fatal("expected the record to map")
		}
		if ev.RatingKey != "" || ev.WatchedMinutes != 0 || !ev.StartedAt.IsZero() {
			t.Errorf("got %+v, want zero values for nil source fields", ev)
		}
	})
}

func intPtr(v int) *int { return &v }
