// Package tripplanner sequences the schedule pipeline. Transportation runs
// first, then accommodation, then the itinerary anchored to the first
// accommodation option. Each stage runs under its own deadline and a failed
// stage aborts the whole run.
package tripplanner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/c360studio/skitrip/llm"
	accommodationplanner "github.com/c360studio/skitrip/processor/accommodation-planner"
	itineraryplanner "github.com/c360studio/skitrip/processor/itinerary-planner"
	transportationplanner "github.com/c360studio/skitrip/processor/transportation-planner"
	"github.com/c360studio/skitrip/trip"
)

const tracerName = "github.com/c360studio/skitrip/processor/trip-planner"

// ErrNoAccommodation is returned when the accommodation stage finds nothing
// to anchor the itinerary to.
var ErrNoAccommodation = errors.New("accommodation stage returned no options")

// TransportationPlanner is the transportation stage.
type TransportationPlanner interface {
	Plan(ctx context.Context, in transportationplanner.Input) ([]trip.TransportationOption, error)
}

// AccommodationPlanner is the accommodation stage.
type AccommodationPlanner interface {
	Plan(ctx context.Context, in accommodationplanner.Input) (*accommodationplanner.Result, error)
}

// ItineraryPlanner is the itinerary stage.
type ItineraryPlanner interface {
	Plan(ctx context.Context, in itineraryplanner.Input) (*itineraryplanner.Result, error)
}

// Orchestrator runs planners in order and assembles schedules.
type Orchestrator struct {
	transportation TransportationPlanner
	accommodation  AccommodationPlanner
	itinerary      ItineraryPlanner

	timeouts map[trip.Stage]time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *Metrics
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStageTimeout sets the deadline for one stage. Zero disables it.
func WithStageTimeout(stage trip.Stage, d time.Duration) Option {
	return func(o *Orchestrator) {
		o.timeouts[stage] = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracerProvider sets the tracer provider for stage spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		o.tracer = tp.Tracer(tracerName)
	}
}

// WithMetrics records stage metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock replaces time.Now for generatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an orchestrator over the three planners.
func NewOrchestrator(t TransportationPlanner, a AccommodationPlanner, i ItineraryPlanner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transportation: t,
		accommodation:  a,
		itinerary:      i,
		timeouts:       make(map[trip.Stage]time.Duration),
		logger:         slog.Default(),
		tracer:         otel.GetTracerProvider().Tracer(tracerName),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate plans a complete schedule. No partial schedule is returned when a
// stage fails.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (*trip.GeneratedSchedule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "tripplanner.Generate", trace.WithAttributes(
		attribute.String("trip.plan_id", req.PlanID),
		attribute.Int("trip.members", len(req.Members)),
		attribute.Int("trip.duration", req.TripDates.Duration),
	))
	defer span.End()

	ctx = llm.WithTraceContext(ctx, llm.TraceContext{PlanID: req.PlanID})
	start := time.Now()

	transportation, err := o.planTransportation(ctx, transportationInput(req.WinningResort, req.TripDates, req.Members))
	if err != nil {
		return nil, o.fail(span, req.PlanID, err)
	}

	accommodation, err := o.planAccommodation(ctx, req.PlanID, accommodationInput(req.WinningResort, req.TripDates, req.Members))
	if err != nil {
		return nil, o.fail(span, req.PlanID, err)
	}

	anchored := &trip.GeneratedSchedule{Accommodation: accommodation}
	anchor, ok := anchored.Anchor()
	if !ok {
		return nil, o.fail(span, req.PlanID, ErrNoAccommodation)
	}

	itinerary, err := o.planItinerary(ctx, itineraryInput(req.WinningResort, req.TripDates, req.Members, anchor))
	if err != nil {
		return nil, o.fail(span, req.PlanID, err)
	}

	schedule := &trip.GeneratedSchedule{
		PlanID:         req.PlanID,
		WinningResort:  scheduleResort(req.WinningResort),
		TripDates:      req.TripDates,
		Transportation: transportation,
		Accommodation:  accommodation,
		Itinerary:      itinerary.Itinerary,
		SkiMap:         itinerary.SkiMap,
		GeneratedAt:    o.now().UTC(),
		GeneratedBy:    req.GeneratedBy,
	}

	o.logger.Info("Schedule generated",
		"plan_id", req.PlanID,
		"transportation", len(schedule.Transportation),
		"accommodation", len(schedule.Accommodation),
		"days", len(schedule.Itinerary),
		"duration", time.Since(start).Round(time.Millisecond))
	span.SetStatus(codes.Ok, "")

	return schedule, nil
}

// PlanAccommodation runs the accommodation stage on its own.
func (o *Orchestrator) PlanAccommodation(ctx context.Context, in accommodationplanner.Input) ([]trip.AccommodationOption, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ctx, span := o.tracer.Start(ctx, "tripplanner.PlanAccommodation")
	defer span.End()

	options, err := o.planAccommodation(ctx, "", in)
	if err != nil {
		return nil, o.fail(span, "", err)
	}
	return options, nil
}

func (o *Orchestrator) planTransportation(ctx context.Context, in transportationplanner.Input) ([]trip.TransportationOption, error) {
	return runStage(ctx, o, trip.StageTransportation, func(ctx context.Context) ([]trip.TransportationOption, error) {
		return o.transportation.Plan(ctx, in)
	})
}

func (o *Orchestrator) planAccommodation(ctx context.Context, planID string, in accommodationplanner.Input) ([]trip.AccommodationOption, error) {
	return runStage(ctx, o, trip.StageAccommodation, func(ctx context.Context) ([]trip.AccommodationOption, error) {
		res, err := o.accommodation.Plan(ctx, in)
		if err != nil {
			return nil, err
		}
		o.metrics.observeAttempts(res.Attempts)
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("accommodation.attempts", res.Attempts),
			attribute.Int("accommodation.available", res.Available),
		)
		if len(res.Options) < accommodationplanner.OptionCount {
			o.logger.Warn("Accommodation returned fewer options than requested",
				"plan_id", planID,
				"options", len(res.Options),
				"attempts", res.Attempts)
		}
		return res.Options, nil
	})
}

func (o *Orchestrator) planItinerary(ctx context.Context, in itineraryplanner.Input) (*itineraryplanner.Result, error) {
	return runStage(ctx, o, trip.StageItinerary, func(ctx context.Context) (*itineraryplanner.Result, error) {
		return o.itinerary.Plan(ctx, in)
	})
}

// runStage runs fn under the stage deadline and its own span. A deadline hit
// while the caller's context is still live becomes a StageTimeoutError.
func runStage[T any](ctx context.Context, o *Orchestrator, stage trip.Stage, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := o.tracer.Start(ctx, "tripplanner.stage."+string(stage), trace.WithAttributes(
		attribute.String("trip.stage", string(stage)),
	))
	defer span.End()

	stageCtx := ctx
	timeout := o.timeouts[stage]
	if timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tc := llm.GetTraceContext(stageCtx)
	tc.Stage = string(stage)
	stageCtx = llm.WithTraceContext(stageCtx, tc)

	start := time.Now()
	out, err := fn(stageCtx)
	elapsed := time.Since(start)

	if err == nil {
		o.metrics.observeStage(stage, "success", elapsed)
		o.logger.Debug("Stage completed", "plan_id", tc.PlanID, "stage", stage, "duration", elapsed.Round(time.Millisecond))
		return out, nil
	}

	outcome := "error"
	if ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		err = &trip.StageTimeoutError{Stage: stage, Timeout: timeout, Err: err}
		outcome = "timeout"
	} else if ctx.Err() != nil {
		outcome = "cancelled"
	}
	o.metrics.observeStage(stage, outcome, elapsed)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	o.logger.Error("Stage failed",
		"plan_id", tc.PlanID,
		"stage", stage,
		"outcome", outcome,
		"duration", elapsed.Round(time.Millisecond),
		"error", err)

	var zero T
	return zero, err
}

func (o *Orchestrator) fail(span trace.Span, planID string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if planID != "" {
		o.logger.Warn("Schedule run aborted", "plan_id", planID, "error", err)
	}
	return err
}

func transportationInput(r trip.Resort, dates trip.TripDates, members []trip.MemberTravelProfile) transportationplanner.Input {
	return transportationplanner.Input{
		Members:           members,
		ResortAddress:     r.Address(),
		ResortCoordinates: r.Coordinates,
		TripDates:         dates,
		GroupSize:         len(members),
	}
}

func scheduleResort(r trip.Resort) trip.Resort {
	r.FullAddress = r.Address()
	return r
}

func accommodationInput(r trip.Resort, dates trip.TripDates, members []trip.MemberTravelProfile) accommodationplanner.Input {
	return accommodationplanner.Input{
		ResortName:        r.Name,
		ResortAddress:     r.Address(),
		ResortCoordinates: r.Coordinates,
		TripDates:         dates,
		GroupSize:         len(members),
		MemberBudgets:     trip.Budgets(members),
	}
}

func itineraryInput(r trip.Resort, dates trip.TripDates, members []trip.MemberTravelProfile, anchor string) itineraryplanner.Input {
	return itineraryplanner.Input{
		ResortName:           r.Name,
		ResortAddress:        r.Address(),
		ResortCoordinates:    r.Coordinates,
		TripDates:            dates,
		Members:              members,
		AccommodationAddress: anchor,
	}
}
