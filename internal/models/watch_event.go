// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package models

import "time"

// MediaKind distinguishes the two playback record variants.
type MediaKind string

// Supported media kinds. Anything else in a history record is treated as
// malformed input by the stats engine.
const (
	KindMovie   MediaKind = "movie"
	KindEpisode MediaKind = "episode"
)

// PlayDecision is the server-side delivery decision for a stream.
type PlayDecision string

// Delivery decisions as reported by Tautulli. "copy" responses from the
// API are normalized to PlayDirectStream by the history adapter because
// the container is remuxed but the video stream is untouched.
const (
	PlayDirectPlay   PlayDecision = "direct play"
	PlayDirectStream PlayDecision = "direct stream"
	PlayTranscode    PlayDecision = "transcode"
)

// WatchEvent is one playback session for a single title, normalized from a
// raw history record. Events are immutable and may arrive in any order;
// the stats engine sorts internally where chronology matters.
type WatchEvent struct {
	Kind      MediaKind `json:"kind"`
	RatingKey string    `json:"rating_key"`
	Title     string    `json:"title"`

	// Episode linkage. Empty/zero for movies.
	ShowTitle     string `json:"show_title,omitempty"`
	ShowRatingKey string `json:"show_rating_key,omitempty"`
	Season        int    `json:"season,omitempty"`
	Episode       int    `json:"episode,omitempty"`

	// ReleaseYear is the title's release year, not the watch year.
	ReleaseYear int `json:"release_year,omitempty"`

	StartedAt time.Time `json:"started_at"`

	// WatchedMinutes is the duration actually watched. Zero means an
	// abandoned or metadata-only record and is dropped by the engine;
	// negative values are malformed.
	WatchedMinutes float64 `json:"watched_minutes"`

	Device     string       `json:"device,omitempty"`
	Platform   string       `json:"platform,omitempty"`
	Decision   PlayDecision `json:"decision,omitempty"`
	Resolution string       `json:"resolution,omitempty"`

	Genres    []string `json:"genres,omitempty"`
	Actors    []string `json:"actors,omitempty"`
	Directors []string `json:"directors,omitempty"`
}

// TitleKey returns the grouping key for unique-title counting: the show
// rating key for episodes (falling back to the show title when the source
// did not supply one) and the rating key for movies.
func (e *WatchEvent) TitleKey() string {
	if e.Kind == KindEpisode {
		if e.ShowRatingKey != "" {
			return e.ShowRatingKey
		}
		return e.ShowTitle
	}
	return e.RatingKey
}
