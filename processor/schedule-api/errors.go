package scheduleapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/c360studio/skitrip/llm"
	"github.com/c360studio/skitrip/storage"
	"github.com/c360studio/skitrip/trip"
)

// Machine-readable error codes.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeValidation       = "validation_error"
	CodeDependency       = "dependency_error"
	CodeStageTimeout     = "stage_timeout"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeRateLimited      = "rate_limited"
	CodeTooLarge         = "request_too_large"
	CodeInvalidOutput    = "invalid_model_output"
	CodeInternal         = "internal_error"
	CodeMethodNotAllowed = "method_not_allowed"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

// classify maps a pipeline error onto a status code and error body.
func classify(err error) (int, ErrorResponse) {
	var (
		validation *trip.ValidationError
		dependency *trip.DependencyError
		timeout    *trip.StageTimeoutError
		tooLarge   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large", Code: CodeTooLarge}
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorResponse{Error: validation.Error(), Code: CodeValidation, Details: map[string]string{"field": validation.Field}}
	case errors.As(err, &dependency):
		return http.StatusBadRequest, ErrorResponse{Error: dependency.Message, Code: CodeDependency, Details: map[string]string{
			"stage":    string(dependency.Stage),
			"requires": string(dependency.Requires),
		}}
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, ErrorResponse{Error: timeout.Error(), Code: CodeStageTimeout, Details: map[string]string{
			"stage":   string(timeout.Stage),
			"timeout": timeout.Timeout.String(),
		}}
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "schedule not found", Code: CodeNotFound}
	case errors.Is(err, storage.ErrRevisionMismatch), errors.Is(err, storage.ErrLocked):
		return http.StatusConflict, ErrorResponse{Error: err.Error(), Code: CodeConflict}
	case llm.IsInvalidOutput(err):
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInvalidOutput}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal}
	}
}
