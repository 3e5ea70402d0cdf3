// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

// Package overseerr is the optional supplementary metadata source: per-user
// request counts from an Overseerr (or Jellyseerr) instance. Everything it
// provides is a nice-to-have; callers degrade to nil extras when the
// service is disabled or unreachable, and report generation proceeds
// without it.
package overseerr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/rewatched/rewatched/internal/config"
	"github.com/rewatched/rewatched/internal/logging"
)

const (
	requestPageSize  = 100
	maxErrorBodySize = 16 * 1024
)

// Client talks to one Overseerr instance. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient builds a client from configuration. Returns nil when the
// integration is disabled so callers can treat absence uniformly.
func NewClient(cfg *config.OverseerrConfig) *Client {
	if !cfg.Enabled || cfg.URL == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// statusResponse is the /api/v1/status payload.
type statusResponse struct {
	Version string `json:"version"`
}

// requestsResponse is the paginated /api/v1/request payload.
type requestsResponse struct {
	PageInfo struct {
		Pages   int `json:"pages"`
		Results int `json:"results"`
	} `json:"pageInfo"`
	Results []mediaRequest `json:"results"`
}

type mediaRequest struct {
	ID          int    `json:"id"`
	Status      int    `json:"status"`
	CreatedAt   string `json:"createdAt"` // RFC 3339
	RequestedBy struct {
		PlexUsername string `json:"plexUsername"`
		Email        string `json:"email"`
	} `json:"requestedBy"`
	Media struct {
		Title string `json:"title"`
		Type  string `json:"mediaType"` // movie, tv
	} `json:"media"`
}

// Ping verifies connectivity and logs the remote version.
func (c *Client) Ping(ctx context.Context) error {
	var status statusResponse
	if err := c.get(ctx, "/api/v1/status", nil, &status); err != nil {
		return fmt.Errorf("failed to ping Overseerr: %w", err)
	}
	logging.Debug().Str("version", status.Version).Msg("overseerr reachable")
	return nil
}

// YearRequests returns, per Plex username, the titles that user requested
// in the given year with per-title counts. Requests without a username or
// a parseable timestamp are skipped.
func (c *Client) YearRequests(ctx context.Context, year int) (map[string]map[string]int, error) {
	byUser := make(map[string]map[string]int)

	for skip := 0; ; skip += requestPageSize {
		params := url.Values{}
		params.Set("take", strconv.Itoa(requestPageSize))
		params.Set("skip", strconv.Itoa(skip))
		params.Set("sort", "added")

		var page requestsResponse
		if err := c.get(ctx, "/api/v1/request", params, &page); err != nil {
			return nil, fmt.Errorf("request page at offset %d: %w", skip, err)
		}

		for i := range page.Results {
			req := &page.Results[i]
			user := req.RequestedBy.PlexUsername
			if user == "" {
				continue
			}
			created, err := time.Parse(time.RFC3339, req.CreatedAt)
			if err != nil || created.UTC().Year() != year {
				continue
			}
			title := req.Media.Title
			if title == "" {
				title = fmt.Sprintf("request #%d", req.ID)
			}
			if byUser[user] == nil {
				byUser[user] = make(map[string]int)
			}
			byUser[user][title]++
		}

		if len(page.Results) < requestPageSize {
			break
		}
	}
	return byUser, nil
}

// get performs an authenticated GET and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("%s failed with status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
