// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package models

// LibraryExtras is optional supplementary metadata from the request
// service (Overseerr). A nil *LibraryExtras means the source was
// unavailable or disabled; the stats engine degrades gracefully and the
// affected fields become sentinels rather than misleading zeros.
type LibraryExtras struct {
	LibraryMovieCount int `json:"library_movie_count"`
	LibraryShowCount  int `json:"library_show_count"`

	// RequestsByTitle counts media requests the user made, keyed by title.
	// Used only to enrich fun facts.
	RequestsByTitle map[string]int `json:"requests_by_title,omitempty"`
}

// LibrarySize returns the total number of titles in the server library.
func (e *LibraryExtras) LibrarySize() int {
	if e == nil {
		return 0
	}
	return e.LibraryMovieCount + e.LibraryShowCount
}

// TotalRequests sums the user's request counts across all titles.
func (e *LibraryExtras) TotalRequests() int {
	if e == nil {
		return 0
	}
	total := 0
	for _, n := range e.RequestsByTitle {
		total += n
	}
	return total
}
