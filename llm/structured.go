package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// schema validates structured replies. Field paths in errors use JSON names.
var schema = newSchemaValidator()

func newSchemaValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ParseStructured extracts the JSON object from a model reply, decodes it
// into out and validates it against out's validate tags. Any failure is an
// InvalidOutputError.
func ParseStructured(content string, out any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		return &InvalidOutputError{Content: content, Reason: "no JSON object in reply"}
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &InvalidOutputError{Content: content, Reason: "reply is not valid JSON for the expected shape", err: err}
	}

	if err := schema.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &InvalidOutputError{Content: content, Reason: formatSchemaErrors(verrs)}
		}
		return &InvalidOutputError{Content: content, Reason: "schema check failed", err: err}
	}
	return nil
}

// ValidateStruct runs the schema validator over an already decoded value.
func ValidateStruct(v any) error {
	if err := schema.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return errors.New(formatSchemaErrors(verrs))
		}
		return err
	}
	return nil
}

func formatSchemaErrors(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return strings.Join(msgs, "; ")
}

func formatFieldError(e validator.FieldError) string {
	path := fieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", path)
	case "len":
		return fmt.Sprintf("%s must have exactly %s items", path, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", path, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", path, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", path, e.Param(), e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s'", path, e.Tag())
	}
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
