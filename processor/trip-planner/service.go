package tripplanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/skitrip/storage"
	"github.com/c360studio/skitrip/trip"
)

// Service runs the pipeline and persists successful results. Writes for one
// plan are serialized by the plan lock and checked against the stored
// revision; failed runs never touch stored state.
type Service struct {
	orchestrator *Orchestrator
	schedules    *storage.ScheduleRepository
	locker       storage.PlanLocker
	lockWait     time.Duration
	logger       *slog.Logger
}

// NewService creates a Service. lockWait bounds how long a save waits for
// the plan lock; zero waits as long as the request context allows.
func NewService(o *Orchestrator, schedules *storage.ScheduleRepository, locker storage.PlanLocker, lockWait time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		orchestrator: o,
		schedules:    schedules,
		locker:       locker,
		lockWait:     lockWait,
		logger:       logger,
	}
}

// Generate plans and saves a complete schedule, replacing any stored one.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*trip.GeneratedSchedule, error) {
	schedule, err := s.orchestrator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	err = s.withLock(ctx, schedule.PlanID, func(ctx context.Context) error {
		_, rev, err := s.schedules.Get(ctx, schedule.PlanID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		_, err = s.schedules.Save(ctx, schedule, rev)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save schedule %s: %w", schedule.PlanID, err)
	}
	return schedule, nil
}

// Regenerate plans one section of the caller's schedule again and saves the
// result. A caller whose copy is older than the stored schedule gets
// storage.ErrRevisionMismatch and must reload before regenerating.
func (s *Service) Regenerate(ctx context.Context, req RegenerateRequest) (*trip.GeneratedSchedule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.current(ctx, req); err != nil {
		return nil, err
	}

	updated, err := s.orchestrator.Regenerate(ctx, req)
	if err != nil {
		return nil, err
	}
	updated.PlanID = req.PlanID

	err = s.withLock(ctx, req.PlanID, func(ctx context.Context) error {
		rev, err := s.current(ctx, req)
		if err != nil {
			return err
		}
		_, err = s.schedules.Save(ctx, updated, rev)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save schedule %s: %w", req.PlanID, err)
	}
	return updated, nil
}

// current returns the stored revision for req's plan. It fails with
// storage.ErrRevisionMismatch when the stored copy is newer than the
// caller's. A missing schedule is not an error and yields revision 0.
func (s *Service) current(ctx context.Context, req RegenerateRequest) (uint64, error) {
	stored, rev, err := s.schedules.Get(ctx, req.PlanID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("load schedule %s: %w", req.PlanID, err)
	}
	if stored.GeneratedAt.After(req.Existing.GeneratedAt) {
		s.logger.Info("Rejecting regeneration of stale schedule",
			"plan_id", req.PlanID,
			"stored_at", stored.GeneratedAt,
			"client_at", req.Existing.GeneratedAt)
		return 0, fmt.Errorf("%w: stored schedule for plan %s was generated at %s, after existingSchedule",
			storage.ErrRevisionMismatch, req.PlanID, stored.GeneratedAt.Format(time.RFC3339))
	}
	return rev, nil
}

// PlanAccommodation runs the accommodation stage alone. Nothing is stored.
func (s *Service) PlanAccommodation(ctx context.Context, in AccommodationRequest) ([]trip.AccommodationOption, error) {
	return s.orchestrator.PlanAccommodation(ctx, in)
}

// Get returns the stored schedule for planID.
func (s *Service) Get(ctx context.Context, planID string) (*trip.GeneratedSchedule, error) {
	schedule, _, err := s.schedules.Get(ctx, planID)
	return schedule, err
}

func (s *Service) withLock(ctx context.Context, planID string, fn func(context.Context) error) error {
	lockCtx := ctx
	if s.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockWait)
		defer cancel()
	}

	unlock, err := s.locker.Lock(lockCtx, planID)
	if err != nil {
		return err
	}
	defer unlock()

	return fn(ctx)
}
