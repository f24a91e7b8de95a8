// Package transportationplanner plans how a group reaches the resort. It makes
// one search-grounded model call and returns exactly three options.
package transportationplanner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/trip"
)

// OptionCount is the number of options every successful call returns.
const OptionCount = 3

// Input is the trip context for one planning call.
type Input struct {
	Members           []trip.MemberTravelProfile
	ResortAddress     string
	ResortCoordinates *trip.Coordinates
	TripDates         trip.TripDates

	// GroupSize defaults to the member count.
	GroupSize int
}

func (in Input) groupSize() int {
	if in.GroupSize > 0 {
		return in.GroupSize
	}
	return len(in.Members)
}

// Validate checks the fields the prompt depends on.
func (in Input) Validate() error {
	if len(in.Members) == 0 {
		return trip.NewValidationError("members", "at least one member is required")
	}
	if in.ResortAddress == "" {
		return trip.NewValidationError("resortAddress", "is required")
	}
	if in.TripDates.StartDate == "" || in.TripDates.EndDate == "" {
		return trip.NewValidationError("tripDates", "startDate and endDate are required")
	}
	return nil
}

// result is the expected reply shape.
type result struct {
	Options []trip.TransportationOption `json:"options" validate:"len=3,dive"`
}

// Planner produces transportation options.
type Planner struct {
	llm    llm.Completer
	config Config
	logger *slog.Logger
}

// New creates a transportation planner.
func New(client llm.Completer, config Config, logger *slog.Logger) (*Planner, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transportation planner config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{llm: client, config: config, logger: logger}, nil
}

// Plan returns exactly OptionCount options. A failed call or a reply that
// does not match the schema is returned as an error; there is no retry here.
func (p *Planner) Plan(ctx context.Context, in Input) ([]trip.TransportationOption, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tc := llm.GetTraceContext(ctx)
	tc.Stage = string(trip.StageTransportation)
	ctx = llm.WithTraceContext(ctx, tc)

	temperature := p.config.Temperature
	resp, err := p.llm.Complete(ctx, llm.Request{
		Capability: p.config.Capability,
		Messages: []llm.Message{
			{Role: "system", Content: SystemPrompt()},
			{Role: "user", Content: UserPrompt(in)},
		},
		Temperature: &temperature,
		MaxTokens:   p.config.MaxTokens,
		Search: &llm.WebSearch{
			AllowedDomains: AllowedDomains,
			ContextSize:    llm.SearchContextHigh,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("transportation completion: %w", err)
	}

	var out result
	if err := llm.ParseStructured(resp.Content, &out); err != nil {
		p.logger.Warn("Transportation reply rejected",
			"plan_id", tc.PlanID,
			"model", resp.Model,
			"error", err)
		return nil, fmt.Errorf("parse transportation options: %w", err)
	}

	p.logger.Info("Transportation planned",
		"plan_id", tc.PlanID,
		"model", resp.Model,
		"options", len(out.Options))

	return out.Options, nil
}
