package tripplanner

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/trip"
)

// Regenerate plans one section again and returns a copy of the existing
// schedule with only that section replaced. Regenerating the itinerary also
// replaces the ski map, and requires existing accommodation to anchor to.
func (o *Orchestrator) Regenerate(ctx context.Context, req RegenerateRequest) (*trip.GeneratedSchedule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "tripplanner.Regenerate", trace.WithAttributes(
		attribute.String("trip.plan_id", req.PlanID),
		attribute.String("trip.section", string(req.Section)),
	))
	defer span.End()

	ctx = llm.WithTraceContext(ctx, llm.TraceContext{PlanID: req.PlanID})
	fresh := &trip.GeneratedSchedule{}

	switch req.Section {
	case trip.StageTransportation:
		options, err := o.planTransportation(ctx, transportationInput(req.WinningResort, req.TripDates, req.Members))
		if err != nil {
			return nil, o.fail(span, req.PlanID, err)
		}
		fresh.Transportation = options

	case trip.StageAccommodation:
		options, err := o.planAccommodation(ctx, req.PlanID, accommodationInput(req.WinningResort, req.TripDates, req.Members))
		if err != nil {
			return nil, o.fail(span, req.PlanID, err)
		}
		fresh.Accommodation = options

	case trip.StageItinerary:
		anchor, ok := req.Existing.Anchor()
		if !ok {
			return nil, o.fail(span, req.PlanID, trip.ErrItineraryNeedsAccommodation)
		}
		res, err := o.planItinerary(ctx, itineraryInput(req.WinningResort, req.TripDates, req.Members, anchor))
		if err != nil {
			return nil, o.fail(span, req.PlanID, err)
		}
		fresh.Itinerary = res.Itinerary
		fresh.SkiMap = res.SkiMap
	}

	updated, err := mergeSection(req.Existing, fresh, req.Section)
	if err != nil {
		return nil, o.fail(span, req.PlanID, err)
	}
	updated.GeneratedAt = o.now().UTC()
	updated.GeneratedBy = req.GeneratedBy

	o.logger.Info("Schedule section regenerated",
		"plan_id", req.PlanID,
		"section", req.Section,
		"generated_by", req.GeneratedBy)
	span.SetStatus(codes.Ok, "")

	return updated, nil
}

// mergeSection returns a copy of base with section taken from src. The
// itinerary section carries the ski map with it. Other sections of base are
// shared, not copied, and never modified.
func mergeSection(base, src *trip.GeneratedSchedule, section trip.Stage) (*trip.GeneratedSchedule, error) {
	out := *base
	switch section {
	case trip.StageTransportation:
		out.Transportation = src.Transportation
	case trip.StageAccommodation:
		out.Accommodation = src.Accommodation
	case trip.StageItinerary:
		out.Itinerary = src.Itinerary
		out.SkiMap = src.SkiMap
	default:
		return nil, trip.NewValidationError("section", fmt.Sprintf("unknown section %q", section))
	}
	return &out, nil
}
