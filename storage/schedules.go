package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360studio/skitrip/trip"
)

// ScheduleRepository stores GeneratedSchedule records keyed by plan id.
type ScheduleRepository struct {
	store DocumentStore
}

// NewScheduleRepository creates a repository on store.
func NewScheduleRepository(store DocumentStore) *ScheduleRepository {
	return &ScheduleRepository{store: store}
}

// Get returns the stored schedule and its revision, or ErrNotFound.
func (r *ScheduleRepository) Get(ctx context.Context, planID string) (*trip.GeneratedSchedule, uint64, error) {
	rec, err := r.store.Get(ctx, CollectionSchedules, planID)
	if err != nil {
		return nil, 0, err
	}

	var s trip.GeneratedSchedule
	if err := json.Unmarshal(rec.Data, &s); err != nil {
		return nil, 0, fmt.Errorf("unmarshal schedule %s: %w", planID, err)
	}
	return &s, rec.Revision, nil
}

// Save writes the schedule. A zero revision means the schedule must not exist
// yet; otherwise the stored copy must still be at revision.
func (r *ScheduleRepository) Save(ctx context.Context, s *trip.GeneratedSchedule, revision uint64) (uint64, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return 0, fmt.Errorf("marshal schedule %s: %w", s.PlanID, err)
	}

	if revision == 0 {
		return r.store.Create(ctx, CollectionSchedules, s.PlanID, data)
	}
	return r.store.Update(ctx, CollectionSchedules, s.PlanID, data, revision)
}

// Delete removes the stored schedule.
func (r *ScheduleRepository) Delete(ctx context.Context, planID string) error {
	return r.store.Delete(ctx, CollectionSchedules, planID)
}
