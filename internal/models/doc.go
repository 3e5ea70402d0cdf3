// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

// Package models provides the data structures shared across Rewatched.
//
// The package is organized by concern:
//   - watch_event.go: normalized playback records consumed by the stats engine
//   - year_stats.go: the per-user annual report produced by the stats engine
//   - generation.go: batch run lifecycle, access tokens, and email logs
//   - extras.go: optional supplementary metadata from the request service
//   - api_responses.go: HTTP response envelopes
//
// Model structs carry json tags because UserYearStats is persisted as a
// flexible JSON document and served to the web frontend unchanged.
package models
