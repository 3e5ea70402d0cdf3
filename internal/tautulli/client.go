// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

// Package tautulli is the watch-history source adapter. It speaks Tautulli's
// v2 HTTP API, pages through get_history for one user-year at a time, and
// maps raw records into the neutral WatchEvent model the stats engine
// consumes.
//
// Resilience: all outbound requests flow through a shared rate limiter and
// automatic HTTP 429 backoff; the Breaker wrapper adds circuit breaking for
// generation runs so a dead Tautulli fails fast instead of timing out once
// per user.
package tautulli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/rewatched/rewatched/internal/config"
	"github.com/rewatched/rewatched/internal/metrics"
)

// maxErrorBodySize caps how much of an error response body is read for
// diagnostics, so a misbehaving proxy cannot balloon memory.
const maxErrorBodySize = 64 * 1024

const (
	maxRateLimitRetries = 5
	retryBaseDelay      = time.Second
)

// Client talks to one Tautulli instance. Safe for concurrent use; the rate
// limiter is shared across all goroutines so a generation run with many
// workers still respects the configured request budget.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter

	pageSize int
}

// NewClient builds a client from configuration. PageSize and the rate
// limits fall back to the config package defaults when unset.
func NewClient(cfg *config.TautulliConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 4
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 8
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	return &Client{
		baseURL:  cfg.URL,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		pageSize: pageSize,
	}
}

// Ping verifies connectivity and API key validity.
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{}
	resp, err := c.doRequest(ctx, "arnold", params)
	if err != nil {
		return fmt.Errorf("failed to ping Tautulli: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Tautulli ping failed with status: %d", resp.StatusCode)
	}
	return nil
}

// GetUsers returns the server's user accounts.
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	var users Users
	if err := c.makeRequest(ctx, "get_users", nil, &users); err != nil {
		return nil, err
	}
	if users.Response.Result != "success" {
		return nil, apiError("get_users", users.Response.Message)
	}
	return users.Response.Data, nil
}

// GetLibraries returns all library sections with their item counts.
func (c *Client) GetLibraries(ctx context.Context) ([]Library, error) {
	var libs Libraries
	if err := c.makeRequest(ctx, "get_libraries", nil, &libs); err != nil {
		return nil, err
	}
	if libs.Response.Result != "success" {
		return nil, apiError("get_libraries", libs.Response.Message)
	}
	return libs.Response.Data, nil
}

// getHistoryPage fetches one page of ungrouped history for a user between
// two dates (inclusive start, exclusive end, Tautulli's "after"/"before"
// semantics are date-granular).
func (c *Client) getHistoryPage(ctx context.Context, userID int, after, before string, start int) (*History, error) {
	params := url.Values{}
	params.Set("user_id", strconv.Itoa(userID))
	params.Set("start", strconv.Itoa(start))
	params.Set("length", strconv.Itoa(c.pageSize))
	params.Set("order_column", "started")
	params.Set("order_dir", "asc")
	params.Set("after", after)
	params.Set("before", before)
	// Session grouping would merge consecutive plays of the same title into
	// one row and hide the individual sessions the engine needs.
	params.Set("grouping", "0")

	var history History
	if err := c.makeRequest(ctx, "get_history", params, &history); err != nil {
		return nil, err
	}
	if history.Response.Result != "success" {
		return nil, apiError("get_history", history.Response.Message)
	}
	return &history, nil
}

// makeRequest performs a Tautulli API call and decodes the JSON response
// into result. The apikey and cmd parameters are added automatically.
func (c *Client) makeRequest(ctx context.Context, cmd string, params url.Values, result interface{}) error {
	resp, err := c.doRequest(ctx, cmd, params)
	if err != nil {
		metrics.HistoryRequests.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to make %s request: %w", cmd, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.HistoryRequests.WithLabelValues("failure").Inc()
		body := readBodyForError(resp.Body)
		return fmt.Errorf("%s request failed with status %d: %s", cmd, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		metrics.HistoryRequests.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to decode %s response: %w", cmd, err)
	}
	metrics.HistoryRequests.WithLabelValues("success").Inc()
	return nil
}

// doRequest performs a rate-limited GET with automatic HTTP 429 backoff
// (1s, 2s, 4s, 8s, 16s; a Retry-After header overrides the schedule).
func (c *Client) doRequest(ctx context.Context, cmd string, params url.Values) (*http.Response, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	params.Set("cmd", cmd)
	reqURL := fmt.Sprintf("%s/api/v2?%s", c.baseURL, params.Encode())

	var lastErr error
	for attempt := 0; attempt <= maxRateLimitRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		_ = resp.Body.Close()
		metrics.HistoryRequests.WithLabelValues("rate_limited").Inc()

		if attempt == maxRateLimitRetries {
			lastErr = fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", maxRateLimitRetries)
			break
		}

		delay := retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func apiError(cmd string, message *string) error {
	msg := "unknown error"
	if message != nil {
		msg = *message
	}
	return fmt.Errorf("%s request failed: %s", cmd, msg)
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
