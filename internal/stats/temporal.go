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

// longestStreak finds the longest run of consecutive calendar days each
// holding at least one qualifying event. When multiple runs share the
// maximum length, the most recent one is reported; walking the sorted days
// ascending and replacing on >= makes that the natural outcome.
func longestStreak(byDay map[string]*bucket, loc *time.Location) *models.StreakSummary {
	if len(byDay) == 0 {
		return nil
	}

	days := make([]time.Time, 0, len(byDay))
	for key := range byDay {
		d, err := time.ParseInLocation(dayKeyFormat, key, loc)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var best, bestStart, bestEnd = 0, days[0], days[0]
	runLen, runStart := 1, days[0]
	for i := 1; i < len(days); i++ {
		// AddDate rather than a 24h delta so DST transition days still
		// count as consecutive.
		if days[i-1].AddDate(0, 0, 1).Equal(days[i]) {
			runLen++
		} else {
			runLen, runStart = 1, days[i]
		}
		if runLen >= best {
			best, bestStart, bestEnd = runLen, runStart, days[i]
		}
	}
	if best == 0 {
		best, bestStart, bestEnd = 1, days[0], days[0]
	}

	return &models.StreakSummary{
		Days:  best,
		Start: bestStart.Format(dayKeyFormat),
		End:   bestEnd.Format(dayKeyFormat),
	}
}

// longestBinge finds the longest contiguous viewing session: a maximal
// event run where each start is no more than gap after the previous start.
// Session length is the summed watched minutes; the session's show is the
// show with the most minutes inside it (movies contribute no show). Equal
// -length sessions resolve to the most recent one, matching the streak
// tie-break.
func longestBinge(events []models.WatchEvent, gap time.Duration) *models.BingeSummary {
	if len(events) == 0 {
		return nil
	}

	type session struct {
		start       time.Time
		minutes     float64
		count       int
		showMinutes map[string]float64
		showOrder   []string // first-appearance order for deterministic ties
	}

	newSession := func(e *models.WatchEvent) *session {
		return &session{start: e.StartedAt, showMinutes: make(map[string]float64)}
	}
	addEvent := func(s *session, e *models.WatchEvent) {
		s.minutes += e.WatchedMinutes
		s.count++
		if e.Kind == models.KindEpisode && e.ShowTitle != "" {
			if _, seen := s.showMinutes[e.ShowTitle]; !seen {
				s.showOrder = append(s.showOrder, e.ShowTitle)
			}
			s.showMinutes[e.ShowTitle] += e.WatchedMinutes
		}
	}

	var best *session
	cur := newSession(&events[0])
	addEvent(cur, &events[0])
	for i := 1; i < len(events); i++ {
		if events[i].StartedAt.Sub(events[i-1].StartedAt) > gap {
			if best == nil || cur.minutes >= best.minutes {
				best = cur
			}
			cur = newSession(&events[i])
		}
		addEvent(cur, &events[i])
	}
	if best == nil || cur.minutes >= best.minutes {
		best = cur
	}

	show, showBest := "", 0.0
	for _, name := range best.showOrder {
		if best.showMinutes[name] > showBest {
			show, showBest = name, best.showMinutes[name]
		}
	}

	return &models.BingeSummary{
		Minutes:   int(math.Round(best.minutes)),
		Events:    best.count,
		ShowTitle: show,
		StartedAt: best.start,
	}
}

// memorableDay is the calendar day with the highest minutes sum. Ties
// resolve to the earliest date for reproducibility.
func memorableDay(byDay map[string]*bucket) *models.DaySummary {
	if len(byDay) == 0 {
		return nil
	}
	keys := make([]string, 0, len(byDay))
	for key := range byDay {
		keys = append(keys, key)
	}
	sort.Strings(keys) // YYYY-MM-DD sorts chronologically

	bestKey, bestMinutes := "", -1.0
	for _, key := range keys {
		if byDay[key].minutes > bestMinutes {
			bestKey, bestMinutes = key, byDay[key].minutes
		}
	}
	return &models.DaySummary{
		Date:    bestKey,
		Minutes: int(math.Round(bestMinutes)),
		Plays:   byDay[bestKey].plays,
	}
}

// peakActivity computes the argmax month, weekday, and hour by minutes.
// Ties break to the earliest key in calendar order: January before
// December, Sunday before Saturday, hour 0 before hour 23.
func peakActivity(n *normalized) *models.PeakActivity {
	if len(n.events) == 0 {
		return nil
	}

	argmax := func(buckets []bucket) int {
		idx, best := 0, buckets[0].minutes
		for i := 1; i < len(buckets); i++ {
			if buckets[i].minutes > best {
				idx, best = i, buckets[i].minutes
			}
		}
		return idx
	}

	month := argmax(n.byMonth[:])
	weekday := argmax(n.byWeekday[:])
	hour := argmax(n.byHour[:])

	return &models.PeakActivity{
		Month:          models.MonthNames[month+1],
		MonthMinutes:   int(math.Round(n.byMonth[month].minutes)),
		Weekday:        models.DayNames[weekday],
		WeekdayMinutes: int(math.Round(n.byWeekday[weekday].minutes)),
		Hour:           hour,
		HourMinutes:    int(math.Round(n.byHour[hour].minutes)),
	}
}

// firstLastWatch picks the chronological boundary events. On exact
// timestamp ties the event with the larger rating key wins; arbitrary but
// deterministic.
func firstLastWatch(events []models.WatchEvent) (first, last *models.WatchMarker) {
	if len(events) == 0 {
		return nil, nil
	}

	prefer := func(a, b *models.WatchEvent) *models.WatchEvent {
		// b wins only on the exact-tie rule.
		if a.StartedAt.Equal(b.StartedAt) && b.RatingKey > a.RatingKey {
			return b
		}
		return a
	}

	firstEv, lastEv := &events[0], &events[0]
	for i := 1; i < len(events); i++ {
		e := &events[i]
		switch {
		case e.StartedAt.Before(firstEv.StartedAt):
			firstEv = e
		case e.StartedAt.Equal(firstEv.StartedAt):
			firstEv = prefer(firstEv, e)
		}
		switch {
		case e.StartedAt.After(lastEv.StartedAt):
			lastEv = e
		case e.StartedAt.Equal(lastEv.StartedAt):
			lastEv = prefer(lastEv, e)
		}
	}

	marker := func(e *models.WatchEvent) *models.WatchMarker {
		return &models.WatchMarker{
			Title:     e.Title,
			ShowTitle: e.ShowTitle,
			At:        e.StartedAt,
			Kind:      e.Kind,
		}
	}
	return marker(firstEv), marker(lastEv)
}
