// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package tautulli

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rewatched/rewatched/internal/config"
	"github.com/rewatched/rewatched/internal/logging"
	"github.com/rewatched/rewatched/internal/metrics"
	"github.com/rewatched/rewatched/internal/models"
)

const breakerName = "tautulli-api"

// HistorySource is what the generation orchestrator needs from this
// package. Breaker implements it for production; tests substitute fakes.
type HistorySource interface {
	Ping(ctx context.Context) error
	ActiveUsers(ctx context.Context) ([]User, error)
	FetchYearHistory(ctx context.Context, userID, year int) ([]models.WatchEvent, error)
	LibraryCounts(ctx context.Context) (movies, shows int, err error)
}

// Breaker wraps Client with a circuit breaker so a dead Tautulli fails a
// generation run fast instead of timing out once per user. The breaker uses
// real time for its recovery windows; tests should exercise the underlying
// client directly.
type Breaker struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[any]
}

// NewBreaker builds the production history source: a rate-limited client
// behind a circuit breaker that opens at a 60% failure rate over at least
// 10 requests and probes recovery after 2 minutes.
func NewBreaker(cfg *config.TautulliConfig) *Breaker {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("opening tautulli circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("tautulli circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Breaker{client: NewClient(cfg), cb: cb}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

func (b *Breaker) Ping(ctx context.Context) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.client.Ping(ctx)
	})
	return err
}

func (b *Breaker) ActiveUsers(ctx context.Context) ([]User, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.client.ActiveUsers(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]User), nil
}

func (b *Breaker) FetchYearHistory(ctx context.Context, userID, year int) ([]models.WatchEvent, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.client.FetchYearHistory(ctx, userID, year)
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.WatchEvent), nil
}

func (b *Breaker) LibraryCounts(ctx context.Context) (movies, shows int, err error) {
	type counts struct{ movies, shows int }
	v, err := b.cb.Execute(func() (any, error) {
		m, s, err := b.client.LibraryCounts(ctx)
		return counts{m, s}, err
	})
	if err != nil {
		return 0, 0, err
	}
	c := v.(counts)
	return c.movies, c.shows, nil
}
