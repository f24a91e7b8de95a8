// Package itineraryplanner builds the day-by-day ski itinerary and the resort
// trail map. Meetups are anchored to the chosen accommodation.
package itineraryplanner

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/trip"
)

// Input is the trip context for one planning call.
type Input struct {
	ResortName        string
	ResortAddress     string
	ResortCoordinates *trip.Coordinates

	// TripDates.Duration sets the number of days planned.
	TripDates trip.TripDates

	Members []trip.MemberTravelProfile

	// AccommodationAddress is the meetup anchor.
	AccommodationAddress string
}

// Validate checks the fields the prompt depends on.
func (in Input) Validate() error {
	if in.ResortName == "" {
		return trip.NewValidationError("resortName", "is required")
	}
	if in.ResortAddress == "" {
		return trip.NewValidationError("resortAddress", "is required")
	}
	if in.TripDates.Duration < 1 {
		return trip.NewValidationError("tripDates.duration", "must be at least 1")
	}
	if len(in.Members) == 0 {
		return trip.NewValidationError("members", "at least one member is required")
	}
	if in.AccommodationAddress == "" {
		return trip.NewValidationError("accommodationAddress", "is required")
	}
	return nil
}

// Result is a planned itinerary and its ski map.
type Result struct {
	Itinerary []trip.DayItinerary
	SkiMap    trip.SkiMap
}

// memberSlopes is one element of the afternoon individualSlopes array as the
// model returns it.
type memberSlopes struct {
	MemberID          string       `json:"memberId" validate:"required"`
	MemberName        string       `json:"memberName"`
	SkillLevel        string       `json:"skillLevel"`
	RecommendedSlopes []trip.Slope `json:"recommendedSlopes" validate:"dive"`
}

type afternoon struct {
	GroupSlopes      []trip.Slope   `json:"groupSlopes" validate:"dive"`
	IndividualSlopes []memberSlopes `json:"individualSlopes" validate:"dive"`
	Description      string         `json:"description"`
}

type day struct {
	Day       int              `json:"day" validate:"min=1"`
	Date      string           `json:"date"`
	Morning   trip.MorningPlan `json:"morning"`
	Afternoon afternoon        `json:"afternoon"`
	Lunch     trip.Lunch       `json:"lunch"`
	ApresSki  *trip.ApresSki   `json:"apresSki"`
}

type skiMap struct {
	ImageURL      *string      `json:"imageUrl"`
	ImageNotFound *bool        `json:"imageNotFound"`
	Slopes        []trip.Slope `json:"slopes" validate:"dive"`
}

type reply struct {
	Itinerary []day  `json:"itinerary" validate:"required,min=1,dive"`
	SkiMap    skiMap `json:"skiMap"`
}

// Planner produces itineraries.
type Planner struct {
	llm    llm.Completer
	config Config
	logger *slog.Logger
}

// New creates an itinerary planner.
func New(client llm.Completer, config Config, logger *slog.Logger) (*Planner, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid itinerary planner config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{llm: client, config: config, logger: logger}, nil
}

// Plan makes one planning call. The reply must cover exactly
// TripDates.Duration days; failures propagate without retry.
func (p *Planner) Plan(ctx context.Context, in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tc := llm.GetTraceContext(ctx)
	tc.Stage = string(trip.StageItinerary)
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
		return nil, fmt.Errorf("itinerary completion: %w", err)
	}

	var out reply
	if err := llm.ParseStructured(resp.Content, &out); err != nil {
		p.logger.Warn("Itinerary reply rejected", "plan_id", tc.PlanID, "model", resp.Model, "error", err)
		return nil, fmt.Errorf("parse itinerary: %w", err)
	}
	if reason := checkDays(out.Itinerary, in.TripDates.Duration); reason != "" {
		err := &llm.InvalidOutputError{Content: resp.Content, Reason: reason}
		p.logger.Warn("Itinerary reply rejected", "plan_id", tc.PlanID, "model", resp.Model, "error", err)
		return nil, fmt.Errorf("parse itinerary: %w", err)
	}

	result := &Result{
		Itinerary: make([]trip.DayItinerary, len(out.Itinerary)),
		SkiMap:    normalizeSkiMap(out.SkiMap),
	}
	for i, d := range out.Itinerary {
		result.Itinerary[i] = p.toDay(d, in.Members, tc.PlanID)
	}
	sort.SliceStable(result.Itinerary, func(i, j int) bool {
		return result.Itinerary[i].Day < result.Itinerary[j].Day
	})

	p.logger.Info("Itinerary planned",
		"plan_id", tc.PlanID,
		"model", resp.Model,
		"days", len(result.Itinerary),
		"ski_map", !result.SkiMap.ImageNotFound,
		"slopes", len(result.SkiMap.Slopes))

	return result, nil
}

// checkDays reports why days do not cover 1..duration exactly once, or ""
// when they do.
func checkDays(days []day, duration int) string {
	if len(days) != duration {
		return fmt.Sprintf("itinerary has %d days, want %d", len(days), duration)
	}
	seen := make(map[int]bool, len(days))
	for _, d := range days {
		if d.Day < 1 || d.Day > duration {
			return fmt.Sprintf("itinerary day %d outside 1..%d", d.Day, duration)
		}
		if seen[d.Day] {
			return fmt.Sprintf("itinerary day %d repeated", d.Day)
		}
		seen[d.Day] = true
	}
	return ""
}

func (p *Planner) toDay(d day, members []trip.MemberTravelProfile, planID string) trip.DayItinerary {
	individual := individualSlopes(d.Afternoon.IndividualSlopes)

	// Members the model skipped still get an entry.
	for _, m := range members {
		if _, ok := individual[m.MemberID]; ok {
			continue
		}
		p.logger.Warn("Itinerary missing member recommendations",
			"plan_id", planID,
			"day", d.Day,
			"member_id", m.MemberID)
		individual[m.MemberID] = trip.MemberSlopes{
			MemberName:        m.MemberName,
			SkillLevel:        m.SkillLevel,
			RecommendedSlopes: []trip.Slope{},
		}
	}

	return trip.DayItinerary{
		Day:     d.Day,
		Date:    d.Date,
		Morning: d.Morning,
		Afternoon: trip.AfternoonPlan{
			GroupSlopes:      d.Afternoon.GroupSlopes,
			IndividualSlopes: individual,
			Description:      d.Afternoon.Description,
		},
		Lunch:    d.Lunch,
		ApresSki: d.ApresSki,
	}
}

// individualSlopes reduces the per-member array into a map keyed by member
// id. A repeated id keeps the last entry.
func individualSlopes(entries []memberSlopes) map[string]trip.MemberSlopes {
	out := make(map[string]trip.MemberSlopes, len(entries))
	for _, e := range entries {
		out[e.MemberID] = trip.MemberSlopes{
			MemberName:        e.MemberName,
			SkillLevel:        e.SkillLevel,
			RecommendedSlopes: e.RecommendedSlopes,
		}
	}
	return out
}

// normalizeSkiMap keeps the image URL only when the model reported finding
// one and it is an absolute http(s) URL.
func normalizeSkiMap(m skiMap) trip.SkiMap {
	out := trip.SkiMap{Slopes: m.Slopes}
	if out.Slopes == nil {
		out.Slopes = []trip.Slope{}
	}

	notFound := m.ImageNotFound != nil && *m.ImageNotFound
	if m.ImageURL != nil && !notFound && isImageURL(*m.ImageURL) {
		out.ImageURL = strings.TrimSpace(*m.ImageURL)
		return out
	}
	out.ImageNotFound = true
	return out
}

func isImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
