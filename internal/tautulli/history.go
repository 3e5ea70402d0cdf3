// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package tautulli

import (
	"context"
	"fmt"
	"time"

	"github.com/rewatched/rewatched/internal/logging"
	"github.com/rewatched/rewatched/internal/models"
)

// FetchYearHistory pages through one user's ungrouped history for a
// calendar year and returns the mapped events. Tautulli's after/before
// filters are date-granular, so the window is padded by a day on each side
// and the engine's own year filter drops the spillover.
//
// The page loop trusts recordsFiltered over page fullness: a short page
// mid-stream would otherwise silently truncate a user's year.
func (c *Client) FetchYearHistory(ctx context.Context, userID, year int) ([]models.WatchEvent, error) {
	after := fmt.Sprintf("%04d-12-31", year-1)
	before := fmt.Sprintf("%04d-01-01", year+1)

	var events []models.WatchEvent
	start := 0
	for {
		page, err := c.getHistoryPage(ctx, userID, after, before, start)
		if err != nil {
			return nil, fmt.Errorf("history page at offset %d: %w", start, err)
		}

		records := page.Response.Data.Data
		for i := range records {
			if ev, ok := mapRecord(&records[i]); ok {
				events = append(events, ev)
			}
		}

		start += len(records)
		if len(records) == 0 || start >= page.Response.Data.RecordsFiltered {
			break
		}
	}

	logging.Debug().
		Int("user_id", userID).
		Int("year", year).
		Int("events", len(events)).
		Msg("fetched history for user")
	return events, nil
}

// ActiveUsers returns the accounts worth generating reports for: active,
// history-keeping users. Tautulli's synthetic "Local" account (user_id 0)
// is excluded.
func (c *Client) ActiveUsers(ctx context.Context) ([]User, error) {
	all, err := c.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(all))
	for _, u := range all {
		if u.UserID == 0 || u.IsActive != 1 || u.KeepHistory != 1 {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// LibraryCounts sums top-level item counts across movie and show sections.
func (c *Client) LibraryCounts(ctx context.Context) (movies, shows int, err error) {
	libs, err := c.GetLibraries(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, lib := range libs {
		n := parseCount(lib.Count)
		switch lib.SectionType {
		case "movie":
			movies += n
		case "show":
			shows += n
		}
	}
	return movies, shows, nil
}

func parseCount(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// unixTime converts a Tautulli epoch-seconds field, zero stays zero.
func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
