// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package stats

import (
	"math"
	"time"

	"github.com/rewatched/rewatched/internal/models"
)

// Options are the engine knobs, threaded in explicitly so the engine stays
// a pure function usable in isolation. Zero values fall back to defaults.
type Options struct {
	// BingeGap is the maximum start-to-start spacing between two events in
	// the same binge session. Default 4h.
	BingeGap time.Duration

	// TopContentCap bounds the movie/show/episode lists. Default 10.
	TopContentCap int

	// TopTagCap bounds the genre/actor/director/device/platform lists.
	// Default 5.
	TopTagCap int

	// MaxFunFacts bounds the emitted fun-fact list. Default 6.
	MaxFunFacts int

	// Location buckets events into calendar days. Default UTC.
	Location *time.Location
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		BingeGap:      4 * time.Hour,
		TopContentCap: 10,
		TopTagCap:     5,
		MaxFunFacts:   6,
		Location:      time.UTC,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.BingeGap <= 0 {
		o.BingeGap = def.BingeGap
	}
	if o.TopContentCap <= 0 {
		o.TopContentCap = def.TopContentCap
	}
	if o.TopTagCap <= 0 {
		o.TopTagCap = def.TopTagCap
	}
	if o.MaxFunFacts <= 0 {
		o.MaxFunFacts = def.MaxFunFacts
	}
	if o.Location == nil {
		o.Location = def.Location
	}
	return o
}

// Report describes what the normalization pass did with the input, for
// observability. A nonzero SkippedMalformed never fails a computation; a
// single bad record must not cost a user their year.
type Report struct {
	InputEvents       int
	Qualifying        int
	SkippedMalformed  int
	DroppedNonPlays   int // zero-duration, abandoned or metadata-only
	DroppedOutOfYear  int
	DroppedDuplicates int
}

// Engine computes UserYearStats snapshots. It is stateless and safe for
// concurrent use from any number of goroutines.
type Engine struct {
	opts Options
}

// NewEngine returns an engine with the given options, filling defaults.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Compute aggregates one user-year of watch events into a UserYearStats.
// It never returns an error: malformed records are skipped and counted in
// the Report, and an empty event set yields a valid all-zero snapshot.
//
// The caller stamps UserID/Username on the result; the engine only ever
// sees events. extras may be nil, in which
// case the library-percentage field becomes its unavailable sentinel and
// request-based fun facts cannot fire.
func (e *Engine) Compute(year int, events []models.WatchEvent, extras *models.LibraryExtras) (*models.UserYearStats, Report) {
	n := normalize(year, events, e.opts.Location)

	s := &models.UserYearStats{
		Year:         year,
		TopMovies:    rankMovies(n.events, e.opts.TopContentCap),
		TopShows:     rankShows(n.events, e.opts.TopContentCap),
		TopEpisodes:  rankEpisodes(n.events, e.opts.TopContentCap),
		TopGenres:    rankTags(n.events, func(ev *models.WatchEvent) []string { return ev.Genres }, e.opts.TopTagCap),
		TopActors:    rankTags(n.events, func(ev *models.WatchEvent) []string { return ev.Actors }, e.opts.TopTagCap),
		TopDirectors: rankTags(n.events, func(ev *models.WatchEvent) []string { return ev.Directors }, e.opts.TopTagCap),
		TopDevices:   rankSingle(n.events, func(ev *models.WatchEvent) string { return ev.Device }, e.opts.TopTagCap),
		TopPlatforms: rankSingle(n.events, func(ev *models.WatchEvent) string { return ev.Platform }, e.opts.TopTagCap),
		FunFacts:     []models.FunFact{},
	}

	e.fillCounters(s, n)
	e.fillTemporal(s, n)
	e.fillDerived(s, n, extras)

	in := &factInputs{stats: s, extras: extras, genreCount: distinctGenres(n.events)}
	s.FunFacts = funFacts(in, e.opts.MaxFunFacts)

	validate(s)
	return s, n.report
}

func (e *Engine) fillCounters(s *models.UserYearStats, n *normalized) {
	s.TotalMinutes = int(math.Round(n.totalMinutes))
	s.TotalPlays = len(n.events)
	s.DaysActive = len(n.byDay)

	uniqueMovies := make(map[string]struct{})
	uniqueShows := make(map[string]struct{})
	uniqueEpisodes := make(map[string]struct{})
	for i := range n.events {
		ev := &n.events[i]
		if ev.Kind == models.KindMovie {
			s.MoviePlays++
			uniqueMovies[ev.RatingKey] = struct{}{}
		} else {
			s.EpisodePlays++
			uniqueEpisodes[ev.RatingKey] = struct{}{}
			if key := ev.TitleKey(); key != "" {
				uniqueShows[key] = struct{}{}
			}
		}
	}
	s.UniqueMovies = len(uniqueMovies)
	s.UniqueShows = len(uniqueShows)
	s.UniqueEpisodes = len(uniqueEpisodes)

	for i := range n.byMonth {
		s.MinutesByMonth[i] = int(math.Round(n.byMonth[i].minutes))
	}
	for i := range n.byWeekday {
		s.MinutesByWeekday[i] = int(math.Round(n.byWeekday[i].minutes))
	}
	for i := range n.byHour {
		s.MinutesByHour[i] = int(math.Round(n.byHour[i].minutes))
	}
}

func (e *Engine) fillTemporal(s *models.UserYearStats, n *normalized) {
	s.Peaks = peakActivity(n)
	s.LongestStreak = longestStreak(n.byDay, e.opts.Location)
	s.LongestBinge = longestBinge(n.events, e.opts.BingeGap)
	s.MemorableDay = memorableDay(n.byDay)
	s.FirstWatch, s.LastWatch = firstLastWatch(n.events)
}

func (e *Engine) fillDerived(s *models.UserYearStats, n *normalized, extras *models.LibraryExtras) {
	days := daysInYear(s.Year)
	if s.DaysActive > 0 {
		s.PercentDaysActive = math.Round(float64(s.DaysActive)/float64(days)*1000) / 10
	}
	s.RewatchCount = rewatchCount(n.events)
	s.QualityMix = qualityMix(n)
	s.LibraryPercent = libraryPercent(s.UniqueMovies+s.UniqueShows, extras)
}

func daysInYear(year int) int {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

// validate enforces the output invariants defensively before the snapshot
// leaves the engine: percentages in [0,100] and counters non-negative.
// Ranked lists are already capped by construction.
func validate(s *models.UserYearStats) {
	s.PercentDaysActive = clampPct(s.PercentDaysActive)
	if s.LibraryPercent != nil {
		pct := clampPct(*s.LibraryPercent)
		s.LibraryPercent = &pct
	}
	s.QualityMix.DirectPlayPercent = clampPctInt(s.QualityMix.DirectPlayPercent)
	s.QualityMix.DirectStreamPercent = clampPctInt(s.QualityMix.DirectStreamPercent)
	s.QualityMix.TranscodePercent = clampPctInt(s.QualityMix.TranscodePercent)

	for _, v := range []*int{
		&s.TotalMinutes, &s.TotalPlays, &s.MoviePlays, &s.EpisodePlays,
		&s.UniqueMovies, &s.UniqueShows, &s.UniqueEpisodes, &s.DaysActive,
		&s.RewatchCount,
	} {
		if *v < 0 {
			*v = 0
		}
	}
}

func clampPct(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func clampPctInt(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
