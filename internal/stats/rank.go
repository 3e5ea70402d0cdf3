// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package stats

import (
	"math"
	"sort"
	"time"

	"github.com/rewatched/rewatched/internal/models"
)

// group accumulates one ranking key across the six content dimensions and
// the device/platform rollups.
type group struct {
	key       string
	title     string
	showTitle string
	plays     int
	minutes   float64
	first     time.Time // earliest observed start, the final ranking tie-break

	// Show-only tracking.
	episodes map[string]struct{}         // distinct episode rating keys
	seasons  map[int]map[int]struct{}    // season -> episode numbers seen
}

func (g *group) add(e *models.WatchEvent) {
	g.plays++
	g.minutes += e.WatchedMinutes
	if g.first.IsZero() || e.StartedAt.Before(g.first) {
		g.first = e.StartedAt
	}
}

// groupBy folds events into groups keyed by keyFn. Events mapping to an
// empty key are skipped. Because the input slice is in canonical order,
// the first-observed title for a key is deterministic.
func groupBy(events []models.WatchEvent, keyFn func(*models.WatchEvent) string, titleFn func(*models.WatchEvent) string) map[string]*group {
	groups := make(map[string]*group)
	for i := range events {
		e := &events[i]
		key := keyFn(e)
		if key == "" {
			continue
		}
		g := groups[key]
		if g == nil {
			g = &group{key: key, title: titleFn(e)}
			groups[key] = g
		}
		g.add(e)
	}
	return groups
}

// rankGroups sorts groups by the documented ordering: play count
// descending, total minutes descending, earliest-observed start ascending,
// key ascending as a final stabilizer. The result is truncated to cap.
func rankGroups(groups map[string]*group, cap int) []*group {
	ranked := make([]*group, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.plays != b.plays {
			return a.plays > b.plays
		}
		if a.minutes != b.minutes {
			return a.minutes > b.minutes
		}
		if !a.first.Equal(b.first) {
			return a.first.Before(b.first)
		}
		return a.key < b.key
	})
	if len(ranked) > cap {
		ranked = ranked[:cap]
	}
	return ranked
}

func toContentRanks(ranked []*group) []models.ContentRank {
	out := make([]models.ContentRank, 0, len(ranked))
	for i, g := range ranked {
		out = append(out, models.ContentRank{
			Rank:          i + 1,
			Title:         g.title,
			RatingKey:     g.key,
			ShowTitle:     g.showTitle,
			Plays:         g.plays,
			Minutes:       int(math.Round(g.minutes)),
			FirstPlayedAt: g.first,
		})
	}
	return out
}

func toTagRanks(ranked []*group) []models.TagRank {
	out := make([]models.TagRank, 0, len(ranked))
	for i, g := range ranked {
		out = append(out, models.TagRank{
			Rank:    i + 1,
			Name:    g.title,
			Plays:   g.plays,
			Minutes: int(math.Round(g.minutes)),
		})
	}
	return out
}

// rankMovies ranks movie plays by rating key.
func rankMovies(events []models.WatchEvent, cap int) []models.ContentRank {
	groups := groupBy(events,
		func(e *models.WatchEvent) string {
			if e.Kind != models.KindMovie {
				return ""
			}
			return e.RatingKey
		},
		func(e *models.WatchEvent) string { return e.Title },
	)
	return toContentRanks(rankGroups(groups, cap))
}

// rankEpisodes ranks individual episode plays by rating key. Entries carry
// their show title for display.
func rankEpisodes(events []models.WatchEvent, cap int) []models.ContentRank {
	groups := make(map[string]*group)
	for i := range events {
		e := &events[i]
		if e.Kind != models.KindEpisode {
			continue
		}
		g := groups[e.RatingKey]
		if g == nil {
			g = &group{key: e.RatingKey, title: e.Title, showTitle: e.ShowTitle}
			groups[e.RatingKey] = g
		}
		g.add(e)
	}
	return toContentRanks(rankGroups(groups, cap))
}

// rankShows aggregates all of a show's episode plays under the show
// identity and additionally tracks distinct episodes and completed
// seasons.
//
// Season completion is an approximation over watched data only: a season
// counts as completed when episodes 1..max(observed episode number) have
// all been seen at least once. The engine has no access to the true
// season episode count, so short seasons can over-report and seasons with
// unwatched trailing episodes under-report. This is a documented
// limitation of the data source, not a bug.
func rankShows(events []models.WatchEvent, cap int) []models.ContentRank {
	groups := make(map[string]*group)
	for i := range events {
		e := &events[i]
		if e.Kind != models.KindEpisode {
			continue
		}
		key := e.TitleKey()
		if key == "" {
			continue
		}
		g := groups[key]
		if g == nil {
			g = &group{
				key:      key,
				title:    e.ShowTitle,
				episodes: make(map[string]struct{}),
				seasons:  make(map[int]map[int]struct{}),
			}
			groups[key] = g
		}
		g.add(e)
		g.episodes[e.RatingKey] = struct{}{}
		if e.Season > 0 && e.Episode > 0 {
			if g.seasons[e.Season] == nil {
				g.seasons[e.Season] = make(map[int]struct{})
			}
			g.seasons[e.Season][e.Episode] = struct{}{}
		}
	}

	ranked := rankGroups(groups, cap)
	out := toContentRanks(ranked)
	for i, g := range ranked {
		out[i].Episodes = len(g.episodes)
		out[i].SeasonsCompleted = completedSeasons(g.seasons)
	}
	return out
}

func completedSeasons(seasons map[int]map[int]struct{}) int {
	completed := 0
	for _, eps := range seasons {
		maxEp := 0
		for ep := range eps {
			if ep > maxEp {
				maxEp = ep
			}
		}
		if maxEp > 0 && len(eps) == maxEp {
			completed++
		}
	}
	return completed
}

// rankTags ranks a multi-valued tag dimension (genres, actors, directors),
// fanning one event into one contribution per tag.
func rankTags(events []models.WatchEvent, tagFn func(*models.WatchEvent) []string, cap int) []models.TagRank {
	groups := make(map[string]*group)
	for i := range events {
		e := &events[i]
		for _, tag := range tagFn(e) {
			if tag == "" {
				continue
			}
			g := groups[tag]
			if g == nil {
				g = &group{key: tag, title: tag}
				groups[tag] = g
			}
			g.add(e)
		}
	}
	return toTagRanks(rankGroups(groups, cap))
}

// rankSingle ranks a single-valued string dimension (device, platform).
func rankSingle(events []models.WatchEvent, fn func(*models.WatchEvent) string, cap int) []models.TagRank {
	groups := groupBy(events,
		func(e *models.WatchEvent) string { return fn(e) },
		func(e *models.WatchEvent) string { return fn(e) },
	)
	return toTagRanks(rankGroups(groups, cap))
}
