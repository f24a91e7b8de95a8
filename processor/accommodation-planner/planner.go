// Package accommodationplanner finds lodging near the resort. Replies are
// sanitized and checked against an acceptance policy; when too few options
// come back the planner asks again for different properties in the same
// conversation, up to a bounded number of attempts.
package accommodationplanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/trip"
)

// OptionCount is the number of options the planner aims for.
const OptionCount = 3

// Input is the lodging search context.
type Input struct {
	ResortName        string            `json:"resortName"`
	ResortAddress     string            `json:"resortAddress"`
	ResortCoordinates *trip.Coordinates `json:"resortCoordinates,omitempty"`
	TripDates         trip.TripDates    `json:"tripDates"`
	GroupSize         int               `json:"groupSize"`
	MemberBudgets     []string          `json:"memberBudgets,omitempty"`
}

// Validate checks the fields the prompt depends on.
func (in Input) Validate() error {
	if in.ResortName == "" {
		return trip.NewValidationError("resortName", "is required")
	}
	if in.ResortAddress == "" {
		return trip.NewValidationError("resortAddress", "is required")
	}
	if in.GroupSize < 1 {
		return trip.NewValidationError("groupSize", "must be at least 1")
	}
	d := in.TripDates
	if d.StartDate == "" || d.EndDate == "" || d.CheckIn == "" || d.CheckOut == "" {
		return trip.NewValidationError("tripDates", "must include startDate, endDate, checkIn, and checkOut")
	}
	return nil
}

// Result is the outcome of a planning run.
type Result struct {
	Options []trip.AccommodationOption

	// Attempts is the number of model calls made.
	Attempts int

	// Available counts the returned options with confirmed availability.
	Available int
}

// reply is the expected reply shape. The option count is checked by the
// acceptance policy, not the schema.
type reply struct {
	Options []trip.AccommodationOption `json:"options" validate:"required,dive"`
}

// Planner produces accommodation options.
type Planner struct {
	llm    llm.Completer
	config Config
	logger *slog.Logger
}

// New creates an accommodation planner.
func New(client llm.Completer, config Config, logger *slog.Logger) (*Planner, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid accommodation planner config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{llm: client, config: config, logger: logger}, nil
}

// Plan runs the planning loop.
//
// Each reply has its photos sanitized and is then accepted when it holds at
// least three available options (the first three available are kept) or at
// least three options of any availability (the first three are kept).
// Otherwise the reply and a follow-up are appended to the conversation and
// the call is repeated. When attempts run out the largest reply seen is
// returned, even with fewer than three options.
//
// Invalid replies get a correction prompt and count as an attempt. Transient
// model failures are absorbed; fatal ones and cancellation stop the loop.
// Plan fails only when no attempt produced usable output.
func (p *Planner) Plan(ctx context.Context, in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tc := llm.GetTraceContext(ctx)
	tc.Stage = string(trip.StageAccommodation)

	messages := []llm.Message{
		{Role: "system", Content: SystemPrompt()},
		{Role: "user", Content: UserPrompt(in)},
	}

	var (
		best     []trip.AccommodationOption
		haveBest bool
		lastErr  error
		attempts int
	)

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		attempts = attempt
		tc.Attempt = attempt

		p.logger.Debug("Accommodation attempt",
			"plan_id", tc.PlanID,
			"attempt", attempt,
			"max_attempts", p.config.MaxAttempts)

		resp, err := p.complete(llm.WithTraceContext(ctx, tc), messages)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("accommodation completion: %w", err)
			}
			lastErr = err
			p.logger.Warn("Accommodation call failed",
				"plan_id", tc.PlanID,
				"attempt", attempt,
				"error", err)
			if llm.IsFatal(err) {
				break
			}
			continue
		}

		var out reply
		if err := llm.ParseStructured(resp.Content, &out); err != nil {
			lastErr = err
			p.logger.Warn("Accommodation reply rejected",
				"plan_id", tc.PlanID,
				"attempt", attempt,
				"model", resp.Model,
				"error", err)
			messages = append(messages,
				llm.Message{Role: "assistant", Content: resp.Content},
				llm.Message{Role: "user", Content: CorrectionPrompt(err)},
			)
			continue
		}

		options := sanitizeOptions(out.Options)
		available := availableOptions(options)

		if len(available) >= OptionCount {
			p.logger.Info("Accommodation planned",
				"plan_id", tc.PlanID,
				"attempt", attempt,
				"found", len(options),
				"available", len(available))
			return newResult(available[:OptionCount], attempt), nil
		}
		if len(options) >= OptionCount {
			p.logger.Info("Accommodation planned with unconfirmed availability",
				"plan_id", tc.PlanID,
				"attempt", attempt,
				"found", len(options),
				"available", len(available))
			return newResult(options[:OptionCount], attempt), nil
		}

		if !haveBest || len(options) >= len(best) {
			best = options
			haveBest = true
		}

		if attempt < p.config.MaxAttempts {
			p.logger.Info("Too few accommodations, retrying search",
				"plan_id", tc.PlanID,
				"attempt", attempt,
				"found", len(options),
				"available", len(available))
			messages = append(messages,
				llm.Message{Role: "assistant", Content: resp.Content},
				llm.Message{Role: "user", Content: FollowUpPrompt(len(options), in)},
			)
		}
	}

	if haveBest {
		p.logger.Warn("Accepting fewer accommodations than requested",
			"plan_id", tc.PlanID,
			"attempts", attempts,
			"found", len(best))
		return newResult(best, attempts), nil
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return nil, fmt.Errorf("accommodation planning failed after %d attempts: %w", attempts, lastErr)
}

func (p *Planner) complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	temperature := p.config.Temperature
	return p.llm.Complete(ctx, llm.Request{
		Capability:  p.config.Capability,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   p.config.MaxTokens,
		Search: &llm.WebSearch{
			AllowedDomains: AllowedDomains,
			ContextSize:    llm.SearchContextHigh,
		},
	})
}

func availableOptions(options []trip.AccommodationOption) []trip.AccommodationOption {
	var out []trip.AccommodationOption
	for _, o := range options {
		if o.Availability.Available {
			out = append(out, o)
		}
	}
	return out
}

func newResult(options []trip.AccommodationOption, attempts int) *Result {
	r := &Result{Options: options, Attempts: attempts}
	for _, o := range options {
		if o.Availability.Available {
			r.Available++
		}
	}
	return r
}
