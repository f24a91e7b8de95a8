package trip

import (
	"errors"
	"fmt"
	"time"
)

// Stage names a step of the schedule pipeline.
type Stage string

const (
	StageTransportation Stage = "transportation"
	StageAccommodation  Stage = "accommodation"
	StageItinerary      Stage = "itinerary"
	StageSlopes         Stage = "slopes"
)

// ParseSection returns the regenerable stage named by s.
func ParseSection(s string) (Stage, bool) {
	switch Stage(s) {
	case StageTransportation, StageAccommodation, StageItinerary:
		return Stage(s), true
	}
	return "", false
}

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// DependencyError reports that a prerequisite section is missing.
type DependencyError struct {
	Stage    Stage
	Requires Stage
	Message  string
}

func (e *DependencyError) Error() string {
	return e.Message
}

// ErrItineraryNeedsAccommodation is returned when an itinerary is requested
// for a schedule that has no accommodation to anchor meetups to.
var ErrItineraryNeedsAccommodation = &DependencyError{
	Stage:    StageItinerary,
	Requires: StageAccommodation,
	Message:  "Cannot regenerate itinerary without accommodation. Please regenerate accommodation first.",
}

// IsDependency reports whether err is a DependencyError.
func IsDependency(err error) bool {
	var d *DependencyError
	return errors.As(err, &d)
}

// StageTimeoutError reports that a pipeline stage exceeded its deadline.
type StageTimeoutError struct {
	Stage   Stage
	Timeout time.Duration
	Err     error
}

func (e *StageTimeoutError) Error() string {
	return fmt.Sprintf("%s stage timed out after %s", e.Stage, e.Timeout)
}

func (e *StageTimeoutError) Unwrap() error {
	return e.Err
}

// IsStageTimeout reports whether err is a StageTimeoutError.
func IsStageTimeout(err error) bool {
	var t *StageTimeoutError
	return errors.As(err, &t)
}
