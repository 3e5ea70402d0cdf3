// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package tautulli

import (
	"strconv"
	"strings"

	"github.com/rewatched/rewatched/internal/models"
)

// mapRecord converts one raw history row into a WatchEvent. Rows for media
// types the report does not cover (music, live TV, photos) return ok=false
// and are skipped here rather than counted as malformed downstream.
//
// Validation is deliberately not done here: a mapped event may still be
// incomplete (missing rating key, zero duration) and the stats engine is
// the single place that classifies those.
func mapRecord(r *HistoryRecord) (models.WatchEvent, bool) {
	var kind models.MediaKind
	switch r.MediaType {
	case "movie":
		kind = models.KindMovie
	case "episode":
		kind = models.KindEpisode
	default:
		return models.WatchEvent{}, false
	}

	ev := models.WatchEvent{
		Kind:       kind,
		RatingKey:  intKey(r.RatingKey),
		Title:      r.Title,
		StartedAt:  unixTime(r.Started),
		Device:     deviceName(r),
		Platform:   r.Platform,
		Decision:   mapDecision(r.TranscodeDecision),
		Resolution: r.VideoFullResolution,
		Genres:     splitList(r.Genres),
		Actors:     splitList(r.Actors),
		Directors:  splitList(r.Directors),
	}

	if r.Duration != nil && *r.Duration > 0 {
		ev.WatchedMinutes = float64(*r.Duration) / 60
	}
	if r.Year != nil {
		ev.ReleaseYear = *r.Year
	}

	if kind == models.KindEpisode {
		if r.GrandparentTitle != nil {
			ev.ShowTitle = *r.GrandparentTitle
		}
		ev.ShowRatingKey = intKey(r.GrandparentRatingKey)
		if r.ParentMediaIndex != nil {
			ev.Season = *r.ParentMediaIndex
		}
		if r.MediaIndex != nil {
			ev.Episode = *r.MediaIndex
		}
	}

	return ev, true
}

// mapDecision normalizes Tautulli transcode decisions. "copy" remuxes the
// container but leaves the video stream untouched, so it reports as direct
// stream.
func mapDecision(decision string) models.PlayDecision {
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case "direct play":
		return models.PlayDirectPlay
	case "copy", "direct stream":
		return models.PlayDirectStream
	case "transcode":
		return models.PlayTranscode
	default:
		return ""
	}
}

// deviceName prefers the player display name over the raw device model,
// matching what users see in Tautulli's own UI.
func deviceName(r *HistoryRecord) string {
	if r.Player != "" {
		return r.Player
	}
	return r.Device
}

func intKey(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// splitList splits Tautulli's comma-separated cast/genre strings, trimming
// whitespace and dropping empties.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
