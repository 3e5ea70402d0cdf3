// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

// Package stats implements the aggregation engine: a pure function from a
// finite set of watch events for one user and one year to a single bounded
// UserYearStats report.
//
// The engine performs no I/O and holds no state between invocations. Given
// the same input event set, in any order, it produces byte-identical
// output. All ordering-sensitive computations (streaks, binges, first/last
// watch, ranking tie-breaks) sort internally with explicit, documented
// comparators; nothing depends on map iteration order or on the order the
// caller supplies events in.
//
// Pipeline:
//
//	normalize  -> drop non-plays, clamp to the target year, de-duplicate,
//	              skip malformed records, build calendar/device buckets
//	rank       -> top-N lists across six content dimensions plus devices
//	              and platforms
//	temporal   -> streaks, binge sessions, memorable day, peak buckets,
//	              first/last watch
//	facts      -> quality mix, rewatches, library share, fun-fact rules
//	assemble   -> invariant validation and final UserYearStats
package stats
