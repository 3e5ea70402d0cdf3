// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

// This file contains the per-user annual report model. UserYearStats is the
// single output of the stats engine: one immutable snapshot per user per
// year, persisted as a JSON document so the fun-fact and badge vocabulary
// can evolve without schema migrations.
package models

import "time"

// UserYearStats is a complete year-in-review report for one user.
//
// Invariants (enforced by the stats engine before the value is returned):
//   - all counters are non-negative
//   - all percentages are within [0, 100]
//   - ranked lists are truncated to their caps and reference only titles
//     present in the input event set
//   - a user-year with zero qualifying events is a valid all-zero report,
//     with nil temporal facts and no fun facts
type UserYearStats struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username,omitempty"`
	Year     int    `json:"year"`

	// Aggregate counters.
	TotalMinutes   int `json:"total_minutes"`
	TotalPlays     int `json:"total_plays"`
	MoviePlays     int `json:"movie_plays"`
	EpisodePlays   int `json:"episode_plays"`
	UniqueMovies   int `json:"unique_movies"`
	UniqueShows    int `json:"unique_shows"`
	UniqueEpisodes int `json:"unique_episodes"`
	DaysActive     int `json:"days_active"`

	// Ranked lists. Movies/shows/episodes are capped at the content cap
	// (10), tag dimensions at the tag cap (5).
	TopMovies    []ContentRank `json:"top_movies"`
	TopShows     []ContentRank `json:"top_shows"`
	TopEpisodes  []ContentRank `json:"top_episodes"`
	TopGenres    []TagRank     `json:"top_genres"`
	TopActors    []TagRank     `json:"top_actors"`
	TopDirectors []TagRank     `json:"top_directors"`
	TopDevices   []TagRank     `json:"top_devices"`
	TopPlatforms []TagRank     `json:"top_platforms"`

	// Minutes watched per calendar bucket, for frontend charts.
	MinutesByMonth   [12]int `json:"minutes_by_month"`   // 0=January
	MinutesByWeekday [7]int  `json:"minutes_by_weekday"` // 0=Sunday
	MinutesByHour    [24]int `json:"minutes_by_hour"`    // 0-23

	// Temporal facts. Nil when the user has no qualifying events.
	Peaks         *PeakActivity  `json:"peaks,omitempty"`
	LongestStreak *StreakSummary `json:"longest_streak,omitempty"`
	LongestBinge  *BingeSummary  `json:"longest_binge,omitempty"`
	MemorableDay  *DaySummary    `json:"memorable_day,omitempty"`
	FirstWatch    *WatchMarker   `json:"first_watch,omitempty"`
	LastWatch     *WatchMarker   `json:"last_watch,omitempty"`

	// Derived facts.
	PercentDaysActive float64    `json:"percent_days_active"` // 0-100
	RewatchCount      int        `json:"rewatch_count"`
	QualityMix        QualityMix `json:"quality_mix"`

	// LibraryPercent is the share of the server library this user watched.
	// Nil when the supplementary metadata source did not supply a library
	// size; distinguishable from an actual 0%.
	LibraryPercent *float64 `json:"library_percent,omitempty"`

	FunFacts []FunFact `json:"fun_facts"`
}

// ContentRank is one entry in a ranked movie/show/episode list.
type ContentRank struct {
	Rank      int    `json:"rank"`
	Title     string `json:"title"`
	RatingKey string `json:"rating_key,omitempty"`
	ShowTitle string `json:"show_title,omitempty"` // set for episodes
	Plays     int    `json:"plays"`
	Minutes   int    `json:"minutes"`

	// FirstPlayedAt is the earliest observed play, used as the final
	// ranking tie-break so output order never depends on map iteration.
	FirstPlayedAt time.Time `json:"first_played_at"`

	// Show-only fields.
	Episodes         int `json:"episodes,omitempty"`
	SeasonsCompleted int `json:"seasons_completed,omitempty"`
}

// TagRank is one entry in a ranked genre/actor/director/device/platform list.
type TagRank struct {
	Rank    int    `json:"rank"`
	Name    string `json:"name"`
	Plays   int    `json:"plays"`
	Minutes int    `json:"minutes"`
}

// PeakActivity holds the argmax calendar buckets by minutes watched.
type PeakActivity struct {
	Month          string `json:"month"`
	MonthMinutes   int    `json:"month_minutes"`
	Weekday        string `json:"weekday"`
	WeekdayMinutes int    `json:"weekday_minutes"`
	Hour           int    `json:"hour"`
	HourMinutes    int    `json:"hour_minutes"`
}

// StreakSummary describes the longest run of consecutive active days.
type StreakSummary struct {
	Days  int    `json:"days"`
	Start string `json:"start"` // YYYY-MM-DD
	End   string `json:"end"`   // YYYY-MM-DD
}

// BingeSummary describes the longest contiguous viewing session.
type BingeSummary struct {
	Minutes   int       `json:"minutes"`
	Events    int       `json:"events"`
	ShowTitle string    `json:"show_title,omitempty"` // empty for all-movie sessions
	StartedAt time.Time `json:"started_at"`
}

// DaySummary describes a single calendar day's viewing.
type DaySummary struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Minutes int    `json:"minutes"`
	Plays   int    `json:"plays"`
}

// WatchMarker identifies the chronologically first or last watch of the year.
type WatchMarker struct {
	Title     string    `json:"title"`
	ShowTitle string    `json:"show_title,omitempty"`
	At        time.Time `json:"at"`
	Kind      MediaKind `json:"kind"`
}

// QualityMix is the percentage of watched minutes per delivery decision.
// Each bucket is rounded independently, so the three values may sum to
// 99-101; no bucket is adjusted to force an exact 100.
type QualityMix struct {
	DirectPlayPercent   int `json:"direct_play_percent"`
	DirectStreamPercent int `json:"direct_stream_percent"`
	TranscodePercent    int `json:"transcode_percent"`
}

// FunFact is one qualitative statement derived from the computed stats.
type FunFact struct {
	Badge string `json:"badge"`
	Text  string `json:"text"`
}

// Badge identifiers for fun facts. The persistence layer treats these as
// opaque strings, so new badges can ship without a migration.
const (
	BadgeMarathoner     = "marathoner"
	BadgeBingeWatcher   = "binge_watcher"
	BadgeStreaker       = "streaker"
	BadgeNightOwl       = "night_owl"
	BadgeEarlyBird      = "early_bird"
	BadgeWeekendWarrior = "weekend_warrior"
	BadgeDirectPlayPro  = "direct_play_pro"
	BadgeSeriesDevotee  = "series_devotee"
	BadgeRewatcher      = "rewatcher"
	BadgeExplorer       = "explorer"
	BadgeRequester      = "requester"
	BadgeCompletionist  = "completionist"
)

// DayNames maps time.Weekday integers to display names (0=Sunday).
var DayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// MonthNames maps month integers (1-12) to display names.
var MonthNames = []string{"", "January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December"}
