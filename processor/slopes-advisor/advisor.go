// Package slopesadvisor assesses a rider's skill from questionnaire answers
// and then suggests resorts, in one conversation across two model calls.
package slopesadvisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/trip"
)

// SkillAssessment is the instructor's read of the rider.
type SkillAssessment struct {
	SkillLevel       string `json:"Skill Level" validate:"required"`
	ImprovementSteps string `json:"Improvement Steps"`
	Equipment        string `json:"Equipment"`
	Notes            string `json:"Notes"`
}

// ResortSlope is a named run at a suggested resort.
type ResortSlope struct {
	Name       string `json:"Name"`
	Difficulty string `json:"Difficulty"`
}

// ResortSuggestion is one suggested resort.
type ResortSuggestion struct {
	Name           string        `json:"Name" validate:"required"`
	Budget         string        `json:"Budget"`
	Location       string        `json:"Location"`
	SnowConditions string        `json:"Snow Conditions"`
	Slopes         []ResortSlope `json:"Slopes"`
}

// ResortInfo is the resort suggestion reply.
type ResortInfo struct {
	Resorts []ResortSuggestion `json:"Resorts" validate:"required,dive"`
}

// Output pairs a parsed reply with its JSON text.
type Output[T any] struct {
	OutputText   string `json:"output_text"`
	OutputParsed T      `json:"output_parsed"`
}

// Result is the advisor response.
type Result struct {
	SlopesInstructor Output[SkillAssessment] `json:"slopesInstructor"`
	ResortInfo       Output[ResortInfo]      `json:"resortInfo"`
}

// Advisor runs the two-step advice conversation.
type Advisor struct {
	llm    llm.Completer
	config Config
	logger *slog.Logger
}

// New creates an advisor.
func New(client llm.Completer, config Config, logger *slog.Logger) (*Advisor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid slopes advisor config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{llm: client, config: config, logger: logger}, nil
}

// Advise assesses the rider described by preferences, any JSON value, and
// then suggests resorts. The second call sees the first call's exchange.
func (a *Advisor) Advise(ctx context.Context, preferences json.RawMessage) (*Result, error) {
	input, err := preferencesText(preferences)
	if err != nil {
		return nil, err
	}

	tc := llm.GetTraceContext(ctx)
	tc.Stage = string(trip.StageSlopes)
	ctx = llm.WithTraceContext(ctx, tc)

	history := []llm.Message{{Role: "user", Content: input}}

	resp, err := a.complete(ctx, a.config.AssessmentCapability, AssessmentPrompt(), history, nil)
	if err != nil {
		return nil, fmt.Errorf("skill assessment: %w", err)
	}
	var assessment SkillAssessment
	if err := llm.ParseStructured(resp.Content, &assessment); err != nil {
		return nil, fmt.Errorf("parse skill assessment: %w", err)
	}
	history = append(history, llm.Message{Role: "assistant", Content: resp.Content})

	history = append(history, llm.Message{Role: "user", Content: ResortRequest(a.config.ResortCount)})
	resp, err = a.complete(ctx, a.config.ResortCapability, ResortPrompt(assessment.SkillLevel, a.config.ResortCount), history, &llm.WebSearch{
		AllowedDomains: AllowedDomains,
		ContextSize:    llm.SearchContextMedium,
	})
	if err != nil {
		return nil, fmt.Errorf("resort suggestions: %w", err)
	}
	var resorts ResortInfo
	if err := llm.ParseStructured(resp.Content, &resorts); err != nil {
		return nil, fmt.Errorf("parse resort suggestions: %w", err)
	}

	a.logger.Info("Slopes advice generated", "plan_id", tc.PlanID, "resorts", len(resorts.Resorts))

	result := &Result{
		SlopesInstructor: Output[SkillAssessment]{OutputParsed: assessment},
		ResortInfo:       Output[ResortInfo]{OutputParsed: resorts},
	}
	if result.SlopesInstructor.OutputText, err = compact(assessment); err != nil {
		return nil, err
	}
	if result.ResortInfo.OutputText, err = compact(resorts); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Advisor) complete(ctx context.Context, capability, system string, history []llm.Message, search *llm.WebSearch) (*llm.Response, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	messages = append(messages, history...)

	temperature := a.config.Temperature
	return a.llm.Complete(ctx, llm.Request{
		Capability:  capability,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   a.config.MaxTokens,
		Search:      search,
	})
}

// preferencesText renders the questionnaire answers as indented JSON.
func preferencesText(preferences json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(preferences)
	switch string(trimmed) {
	case "", "null", `""`, "false", "0":
		return "", trip.NewValidationError("preferences", "required")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return "", trip.NewValidationError("preferences", "must be valid JSON")
	}
	return buf.String(), nil
}

func compact(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal advice: %w", err)
	}
	return string(data), nil
}
