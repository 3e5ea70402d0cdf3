// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package stats

import (
	"sort"
	"time"

	"github.com/rewatched/rewatched/internal/models"
)

// bucket accumulates a play count and a minutes sum.
type bucket struct {
	plays   int
	minutes float64
}

func (b *bucket) add(minutes float64) {
	b.plays++
	b.minutes += minutes
}

// normalized is the output of the single linear normalization pass: the
// qualifying events in canonical order plus the indexed buckets every
// later stage reads from.
type normalized struct {
	// events holds the qualifying, de-duplicated events sorted by start
	// time ascending (ties by rating key, then descending minutes). This
	// canonical order makes every downstream walk order-independent with
	// respect to the caller's input order.
	events []models.WatchEvent

	byDay        map[string]*bucket // key YYYY-MM-DD in the engine location
	byMonth      [12]bucket
	byWeekday    [7]bucket
	byHour       [24]bucket
	byDevice     map[string]*bucket
	byPlatform   map[string]*bucket
	byDecision   map[models.PlayDecision]*bucket
	byResolution map[string]*bucket

	totalMinutes float64

	report Report
}

const dayKeyFormat = "2006-01-02"

// malformed reports whether a record is unusable: missing identity,
// missing timestamp, a strictly negative duration, or an unknown media
// kind. Zero duration is not malformed; it is a non-play and is dropped
// separately without counting against the source.
func malformed(e *models.WatchEvent) bool {
	if e.RatingKey == "" || e.Title == "" {
		return true
	}
	if e.StartedAt.IsZero() {
		return true
	}
	if e.WatchedMinutes < 0 {
		return true
	}
	if e.Kind != models.KindMovie && e.Kind != models.KindEpisode {
		return true
	}
	return false
}

// normalize runs the §4.1 pass: validate, filter, de-duplicate, sort, and
// bucket. Each event is visited a small constant number of times.
func normalize(year int, events []models.WatchEvent, loc *time.Location) *normalized {
	n := &normalized{
		byDay:        make(map[string]*bucket),
		byDevice:     make(map[string]*bucket),
		byPlatform:   make(map[string]*bucket),
		byDecision:   make(map[models.PlayDecision]*bucket),
		byResolution: make(map[string]*bucket),
	}
	n.report.InputEvents = len(events)

	qualifying := make([]models.WatchEvent, 0, len(events))
	for i := range events {
		e := events[i]
		if malformed(&e) {
			n.report.SkippedMalformed++
			continue
		}
		if e.WatchedMinutes == 0 {
			n.report.DroppedNonPlays++
			continue
		}
		if e.StartedAt.In(loc).Year() != year {
			n.report.DroppedOutOfYear++
			continue
		}
		qualifying = append(qualifying, e)
	}

	// Canonical ordering. Sorting before de-duplication means the surviving
	// representative of a duplicate pair is chosen deterministically, so
	// permuting the input cannot change the result.
	sort.Slice(qualifying, func(i, j int) bool {
		a, b := &qualifying[i], &qualifying[j]
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.Before(b.StartedAt)
		}
		if a.RatingKey != b.RatingKey {
			return a.RatingKey < b.RatingKey
		}
		return a.WatchedMinutes > b.WatchedMinutes
	})

	// De-duplicate by (ratingKey, startedAt): residual duplicates from the
	// history source must not double-count.
	deduped := qualifying[:0]
	for i := range qualifying {
		if i > 0 &&
			qualifying[i].RatingKey == qualifying[i-1].RatingKey &&
			qualifying[i].StartedAt.Equal(qualifying[i-1].StartedAt) {
			n.report.DroppedDuplicates++
			continue
		}
		deduped = append(deduped, qualifying[i])
	}
	n.events = deduped
	n.report.Qualifying = len(deduped)

	for i := range n.events {
		e := &n.events[i]
		local := e.StartedAt.In(loc)
		m := e.WatchedMinutes

		n.totalMinutes += m

		day := local.Format(dayKeyFormat)
		if n.byDay[day] == nil {
			n.byDay[day] = &bucket{}
		}
		n.byDay[day].add(m)

		n.byMonth[int(local.Month())-1].add(m)
		n.byWeekday[int(local.Weekday())].add(m)
		n.byHour[local.Hour()].add(m)

		if e.Device != "" {
			if n.byDevice[e.Device] == nil {
				n.byDevice[e.Device] = &bucket{}
			}
			n.byDevice[e.Device].add(m)
		}
		if e.Platform != "" {
			if n.byPlatform[e.Platform] == nil {
				n.byPlatform[e.Platform] = &bucket{}
			}
			n.byPlatform[e.Platform].add(m)
		}
		if e.Decision != "" {
			if n.byDecision[e.Decision] == nil {
				n.byDecision[e.Decision] = &bucket{}
			}
			n.byDecision[e.Decision].add(m)
		}
		if e.Resolution != "" {
			if n.byResolution[e.Resolution] == nil {
				n.byResolution[e.Resolution] = &bucket{}
			}
			n.byResolution[e.Resolution].add(m)
		}
	}

	return n
}
