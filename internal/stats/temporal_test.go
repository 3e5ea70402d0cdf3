// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package stats

import (
	"testing"
	"time"

	"github.com/rewatched/rewatched/internal/models"
)

func dayMap(days ...string) map[string]*bucket {
	m := make(map[string]*bucket, len(days))
	for _, d := range days {
		if m[d] == nil {
			m[d] = &bucket{}
		}
		m[d].add(60)
	}
	return m
}

func TestLongestStreak(t *testing.T) {
	t.Run("longest run wins", func(t *testing.T) {
		// A three-day run followed by a six-day run.
		got := longestStreak(dayMap(
			"2025-01-01", "2025-01-02", "2025-01-03",
			"2025-01-10", "2025-01-11", "2025-01-12", "2025-01-13", "2025-01-14", "2025-01-15",
		), time.UTC)
		if got == nil {
			t.Fatal("expected a streak")
		}
		if got.Days != 6 || got.Start != "2025-01-10" || got.End != "2025-01-15" {
			t.Errorf("streak = %+v, want 6 days 2025-01-10..2025-01-15", got)
		}
	})

	t.Run("tie goes to most recent", func(t *testing.T) {
		got := longestStreak(dayMap(
			"2025-02-01", "2025-02-02",
			"2025-07-10", "2025-07-11",
		), time.UTC)
		if got.Days != 2 || got.Start != "2025-07-10" {
			t.Errorf("streak = %+v, want the July run", got)
		}
	})

	t.Run("single day", func(t *testing.T) {
		got := longestStreak(dayMap("2025-05-05"), time.UTC)
		if got.Days != 1 || got.Start != "2025-05-05" || got.End != "2025-05-05" {
			t.Errorf("streak = %+v, want 1 day", got)
		}
	})

	t.Run("no days", func(t *testing.T) {
		if got := longestStreak(nil, time.UTC); got != nil {
			t.Errorf("streak = %+v, want nil", got)
		}
	})
}

func TestLongestBinge(t *testing.T) {
	gap := 4 * time.Hour
	base := at(2025, 3, 8, 10, 0)

	t.Run("events within the gap merge", func(t *testing.T) {
		// Starts 3h59m apart stay in one session.
		events := []models.WatchEvent{
			episode("s1", "The Wire", "e1", 1, 1, base, 60),
			episode("s1", "The Wire", "e2", 1, 2, base.Add(3*time.Hour+59*time.Minute), 60),
			episode("s1", "The Wire", "e3", 1, 3, base.Add(2*(3*time.Hour+59*time.Minute)), 60),
		}
		got := longestBinge(events, gap)
		if got == nil {
			t.Fatal("expected a binge")
		}
		if got.Events != 3 || got.Minutes != 180 {
			t.Errorf("binge = %+v, want 3 events / 180 minutes", got)
		}
		if got.ShowTitle != "The Wire" {
			t.Errorf("ShowTitle = %q, want The Wire", got.ShowTitle)
		}
	})

	t.Run("events past the gap split", func(t *testing.T) {
		// Starts 4h01m apart begin a new session.
		events := []models.WatchEvent{
			episode("s1", "The Wire", "e1", 1, 1, base, 60),
			episode("s1", "The Wire", "e2", 1, 2, base.Add(4*time.Hour+time.Minute), 60),
		}
		got := longestBinge(events, gap)
		if got.Events != 1 {
			t.Errorf("Events = %d, want 1 (sessions split at the gap)", got.Events)
		}
	})

	t.Run("dominant show by minutes", func(t *testing.T) {
		events := []models.WatchEvent{
			episode("s1", "The Wire", "e1", 1, 1, base, 30),
			episode("s2", "Severance", "e2", 1, 1, base.Add(time.Hour), 90),
			movie("m1", "Heat", base.Add(2*time.Hour), 20),
		}
		got := longestBinge(events, gap)
		if got.ShowTitle != "Severance" {
			t.Errorf("ShowTitle = %q, want Severance", got.ShowTitle)
		}
		if got.Minutes != 140 {
			t.Errorf("Minutes = %d, want 140 (movies count toward length)", got.Minutes)
		}
	})

	t.Run("all movies", func(t *testing.T) {
		events := []models.WatchEvent{
			movie("m1", "Heat", base, 170),
			movie("m2", "Alien", base.Add(3*time.Hour), 117),
		}
		got := longestBinge(events, gap)
		if got.ShowTitle != "" {
			t.Errorf("ShowTitle = %q, want empty for an all-movie session", got.ShowTitle)
		}
	})

	t.Run("tie goes to most recent session", func(t *testing.T) {
		events := []models.WatchEvent{
			movie("m1", "Heat", base, 100),
			movie("m2", "Alien", base.Add(24*time.Hour), 100),
		}
		got := longestBinge(events, gap)
		if !got.StartedAt.Equal(base.Add(24 * time.Hour)) {
			t.Errorf("StartedAt = %v, want the later session", got.StartedAt)
		}
	})
}

func TestMemorableDay(t *testing.T) {
	t.Run("highest minutes wins", func(t *testing.T) {
		byDay := map[string]*bucket{
			"2025-01-10": {plays: 2, minutes: 120},
			"2025-03-04": {plays: 5, minutes: 400},
		}
		got := memorableDay(byDay)
		if got.Date != "2025-03-04" || got.Minutes != 400 || got.Plays != 5 {
			t.Errorf("memorable day = %+v, want 2025-03-04/400/5", got)
		}
	})

	t.Run("tie goes to earliest date", func(t *testing.T) {
		byDay := map[string]*bucket{
			"2025-09-01": {plays: 1, minutes: 200},
			"2025-02-01": {plays: 1, minutes: 200},
		}
		got := memorableDay(byDay)
		if got.Date != "2025-02-01" {
			t.Errorf("Date = %q, want 2025-02-01", got.Date)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := memorableDay(nil); got != nil {
			t.Errorf("memorable day = %+v, want nil", got)
		}
	})
}

func TestPeakActivity(t *testing.T) {
	events := []models.WatchEvent{
		movie("m1", "Heat", at(2025, 3, 8, 21, 0), 170),  // March, Saturday, 21
		movie("m2", "Alien", at(2025, 3, 9, 21, 0), 117), // March, Sunday, 21
		movie("m3", "Ronin", at(2025, 7, 2, 10, 0), 122), // July, Wednesday, 10
	}
	n := normalize(2025, events, time.UTC)
	got := peakActivity(n)
	if got == nil {
		t.Fatal("expected peaks")
	}
	if got.Month != "March" || got.MonthMinutes != 287 {
		t.Errorf("peak month = %s/%d, want March/287", got.Month, got.MonthMinutes)
	}
	if got.Weekday != "Saturday" {
		t.Errorf("peak weekday = %s, want Saturday", got.Weekday)
	}
	if got.Hour != 21 || got.HourMinutes != 287 {
		t.Errorf("peak hour = %d/%d, want 21/287", got.Hour, got.HourMinutes)
	}
}

func TestFirstLastWatch(t *testing.T) {
	t.Run("chronological boundaries", func(t *testing.T) {
		events := []models.WatchEvent{
			movie("m2", "Middle", at(2025, 6, 1, 12, 0), 90),
			movie("m1", "First", at(2025, 1, 2, 8, 0), 90),
			movie("m3", "Last", at(2025, 12, 30, 23, 0), 90),
		}
		first, last := firstLastWatch(events)
		if first.Title != "First" || last.Title != "Last" {
			t.Errorf("first=%q last=%q, want First/Last", first.Title, last.Title)
		}
	})

	t.Run("timestamp tie prefers larger rating key", func(t *testing.T) {
		start := at(2025, 4, 4, 20, 0)
		events := []models.WatchEvent{
			movie("m1", "Lower", start, 90),
			movie("m9", "Higher", start, 90),
		}
		first, last := firstLastWatch(events)
		if first.Title != "Higher" || last.Title != "Higher" {
			t.Errorf("first=%q last=%q, want Higher for both", first.Title, last.Title)
		}
	})

	t.Run("empty", func(t *testing.T) {
		first, last := firstLastWatch(nil)
		if first != nil || last != nil {
			t.Error("expected nil markers for empty input")
		}
	})
}
