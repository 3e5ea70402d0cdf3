// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package stats

import (
	"fmt"
	"math"

	"github.com/rewatched/rewatched/internal/models"
)

// qualityMix computes the percentage of total watched minutes per delivery
// decision. Each bucket rounds independently; the three values may sum to
// 99-101 and no bucket is adjusted to force 100, since that would hide
// which bucket absorbed the rounding.
func qualityMix(n *normalized) models.QualityMix {
	if n.totalMinutes <= 0 {
		return models.QualityMix{}
	}
	pct := func(d models.PlayDecision) int {
		b := n.byDecision[d]
		if b == nil {
			return 0
		}
		return int(math.Round(b.minutes / n.totalMinutes * 100))
	}
	return models.QualityMix{
		DirectPlayPercent:   pct(models.PlayDirectPlay),
		DirectStreamPercent: pct(models.PlayDirectStream),
		TranscodePercent:    pct(models.PlayTranscode),
	}
}

// rewatchCount counts distinct movie rating keys played at least twice.
func rewatchCount(events []models.WatchEvent) int {
	plays := make(map[string]int)
	for i := range events {
		if events[i].Kind == models.KindMovie {
			plays[events[i].RatingKey]++
		}
	}
	count := 0
	for _, p := range plays {
		if p >= 2 {
			count++
		}
	}
	return count
}

// libraryPercent returns the share of the server library this user
// watched, or nil when the supplementary source supplied no library size.
// Nil is an explicit "unavailable" sentinel, distinguishable from 0%.
func libraryPercent(uniqueTitles int, extras *models.LibraryExtras) *float64 {
	size := extras.LibrarySize()
	if size <= 0 {
		return nil
	}
	pct := float64(uniqueTitles) / float64(size) * 100
	if pct > 100 {
		pct = 100
	}
	pct = math.Round(pct*10) / 10
	return &pct
}

// factInputs carries the pre-computed values the fun-fact rule table reads.
// Rules never recompute from raw events, so adding a rule cannot change
// the rest of the report.
type factInputs struct {
	stats      *models.UserYearStats
	extras     *models.LibraryExtras
	genreCount int // distinct genres observed, pre-cap
}

type factRule struct {
	badge string
	// eval returns the fact text when the rule fires, "" otherwise.
	eval func(in *factInputs) string
}

// factRules is the ordered rule table: evaluated top to bottom, each rule
// fires at most once, and the emitted list is capped at MaxFunFacts. Same
// input always yields the same facts in the same order.
var factRules = []factRule{
	{models.BadgeMarathoner, func(in *factInputs) string {
		hours := in.stats.TotalMinutes / 60
		if hours >= 500 {
			return fmt.Sprintf("You watched %d hours this year. That's over %d full days of viewing.", hours, hours/24)
		}
		return ""
	}},
	{models.BadgeBingeWatcher, func(in *factInputs) string {
		b := in.stats.LongestBinge
		if b != nil && b.Minutes >= 240 {
			if b.ShowTitle != "" {
				return fmt.Sprintf("Your longest binge ran %d minutes, mostly %s.", b.Minutes, b.ShowTitle)
			}
			return fmt.Sprintf("Your longest binge ran %d minutes straight.", b.Minutes)
		}
		return ""
	}},
	{models.BadgeStreaker, func(in *factInputs) string {
		s := in.stats.LongestStreak
		if s != nil && s.Days >= 7 {
			return fmt.Sprintf("You watched something %d days in a row.", s.Days)
		}
		return ""
	}},
	{models.BadgeNightOwl, func(in *factInputs) string {
		night := in.stats.MinutesByHour[22] + in.stats.MinutesByHour[23] +
			in.stats.MinutesByHour[0] + in.stats.MinutesByHour[1] + in.stats.MinutesByHour[2]
		if in.stats.TotalMinutes > 0 && night*100/in.stats.TotalMinutes >= 40 {
			return "Night owl: a big share of your viewing happened after 10 PM."
		}
		return ""
	}},
	{models.BadgeEarlyBird, func(in *factInputs) string {
		morning := in.stats.MinutesByHour[5] + in.stats.MinutesByHour[6] +
			in.stats.MinutesByHour[7] + in.stats.MinutesByHour[8]
		if in.stats.TotalMinutes > 0 && morning*100/in.stats.TotalMinutes >= 40 {
			return "Early bird: much of your viewing happened before 9 AM."
		}
		return ""
	}},
	{models.BadgeWeekendWarrior, func(in *factInputs) string {
		weekend := in.stats.MinutesByWeekday[0] + in.stats.MinutesByWeekday[6]
		if in.stats.TotalMinutes > 0 && weekend*100/in.stats.TotalMinutes >= 60 {
			return "Weekend warrior: most of your watching happened on Saturdays and Sundays."
		}
		return ""
	}},
	{models.BadgeDirectPlayPro, func(in *factInputs) string {
		if in.stats.QualityMix.DirectPlayPercent >= 80 {
			return fmt.Sprintf("%d%% of your minutes direct played. Your setup barely made the server sweat.", in.stats.QualityMix.DirectPlayPercent)
		}
		return ""
	}},
	{models.BadgeSeriesDevotee, func(in *factInputs) string {
		if len(in.stats.TopShows) > 0 && in.stats.TopShows[0].Episodes >= 25 {
			top := in.stats.TopShows[0]
			return fmt.Sprintf("You went deep on %s: %d episodes.", top.Title, top.Episodes)
		}
		return ""
	}},
	{models.BadgeCompletionist, func(in *factInputs) string {
		for _, show := range in.stats.TopShows {
			if show.SeasonsCompleted >= 2 {
				return fmt.Sprintf("Completionist: you finished %d seasons of %s.", show.SeasonsCompleted, show.Title)
			}
		}
		return ""
	}},
	{models.BadgeRewatcher, func(in *factInputs) string {
		if in.stats.RewatchCount >= 3 {
			return fmt.Sprintf("You rewatched %d movies this year. Comfort viewing counts.", in.stats.RewatchCount)
		}
		return ""
	}},
	{models.BadgeExplorer, func(in *factInputs) string {
		if in.genreCount >= 10 {
			return fmt.Sprintf("Explorer: you watched across %d genres.", in.genreCount)
		}
		return ""
	}},
	{models.BadgeRequester, func(in *factInputs) string {
		if total := in.extras.TotalRequests(); total >= 5 {
			return fmt.Sprintf("You requested %d titles this year, and then actually watched things.", total)
		}
		return ""
	}},
}

// funFacts evaluates the rule table in order, skipping non-firing rules,
// and caps the output.
func funFacts(in *factInputs, maxFacts int) []models.FunFact {
	facts := make([]models.FunFact, 0, maxFacts)
	for _, rule := range factRules {
		if len(facts) >= maxFacts {
			break
		}
		if text := rule.eval(in); text != "" {
			facts = append(facts, models.FunFact{Badge: rule.badge, Text: text})
		}
	}
	return facts
}

// distinctGenres counts unique genre tags across all qualifying events.
func distinctGenres(events []models.WatchEvent) int {
	seen := make(map[string]struct{})
	for i := range events {
		for _, g := range events[i].Genres {
			if g != "" {
				seen[g] = struct{}{}
			}
		}
	}
	return len(seen)
}
