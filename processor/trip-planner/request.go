package tripplanner

import (
	accommodationplanner "github.com/c360studio/skitrip/processor/accommodation-planner"
	"github.com/c360studio/skitrip/trip"
)

// AccommodationRequest asks for lodging options outside a full run.
type AccommodationRequest = accommodationplanner.Input

// GenerateRequest asks for a complete schedule.
type GenerateRequest struct {
	PlanID        string
	WinningResort trip.Resort
	TripDates     trip.TripDates
	Members       []trip.MemberTravelProfile
	GeneratedBy   string
}

// Validate checks required fields and normalizes the trip dates in place.
func (r *GenerateRequest) Validate() error {
	if r.PlanID == "" {
		return trip.NewValidationError("planId", "is required")
	}
	if r.WinningResort.Name == "" || r.WinningResort.Location == "" {
		return trip.NewValidationError("winningResort", "must have name and location")
	}
	if len(r.Members) == 0 {
		return trip.NewValidationError("members", "at least one member is required")
	}
	if r.GeneratedBy == "" {
		return trip.NewValidationError("generatedBy", "is required")
	}
	dates, err := trip.NormalizeTripDates(r.TripDates)
	if err != nil {
		return err
	}
	r.TripDates = dates
	return nil
}

// RegenerateRequest asks for one section of an existing schedule to be
// planned again.
type RegenerateRequest struct {
	GenerateRequest
	Section  trip.Stage
	Existing *trip.GeneratedSchedule
}

// Validate checks required fields, the section name, and that the existing
// schedule belongs to the plan and can support the section.
func (r *RegenerateRequest) Validate() error {
	if r.Section == "" {
		return trip.NewValidationError("section", "is required")
	}
	if _, ok := trip.ParseSection(string(r.Section)); !ok {
		return trip.NewValidationError("section", "must be one of: transportation, accommodation, itinerary")
	}
	if r.Existing == nil {
		return trip.NewValidationError("existingSchedule", "is required")
	}
	if err := r.GenerateRequest.Validate(); err != nil {
		return err
	}
	if r.Existing.PlanID != r.PlanID {
		return trip.NewValidationError("existingSchedule.planId", "must match planId")
	}
	if r.Section == trip.StageItinerary {
		if _, ok := r.Existing.Anchor(); !ok {
			return trip.ErrItineraryNeedsAccommodation
		}
	}
	return nil
}
