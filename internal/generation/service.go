// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package generation

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rewatched/rewatched/internal/logging"
	"github.com/rewatched/rewatched/internal/models"
)

// ErrRunInProgress is returned by Trigger when a run is already queued or
// executing. Runs hit the same upstream API for every user, so only one
// executes at a time.
var ErrRunInProgress = errors.New("a generation run is already in progress")

// Service hosts the orchestrator under the supervisor. Runs are triggered
// through Trigger and executed serially on the Serve goroutine.
type Service struct {
	runner   *Orchestrator
	requests chan *models.Generation
	busy     atomic.Bool
}

// NewService wraps an orchestrator as a supervised service.
func NewService(runner *Orchestrator) *Service {
	return &Service{
		runner:   runner,
		requests: make(chan *models.Generation, 1),
	}
}

// Trigger queues a run for the given generation. Returns ErrRunInProgress
// when one is already queued or executing.
func (s *Service) Trigger(gen *models.Generation) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	s.requests <- gen
	return nil
}

// Running reports whether a run is queued or executing.
func (s *Service) Running() bool {
	return s.busy.Load()
}

// Distribute re-sends report emails for an existing generation. Runs
// synchronously on the caller's goroutine; it reads stored stats and does
// not contend with a running generation.
func (s *Service) Distribute(ctx context.Context, gen *models.Generation) (sent, failed int, err error) {
	return s.runner.Distribute(ctx, gen)
}

// Serve implements suture.Service. It executes queued runs until the
// context is canceled. A run failure is logged, not returned: returning it
// would make the supervisor restart the service for an upstream outage.
func (s *Service) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case gen := <-s.requests:
			if err := s.runner.Run(ctx, gen); err != nil {
				logging.Error().Err(err).Str("generation_id", gen.ID).Msg("generation run failed")
			}
			s.busy.Store(false)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Service) String() string {
	return "generation-runner"
}
