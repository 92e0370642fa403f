// Package validation checks worker job variables against the JSON schemas
// declared in the activity registry.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var activityNaming = regexp.MustCompile(`^[a-z]+\.[a-z]+\.[a-z]+$`)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator is a compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// Compile prepares a schema given as decoded JSON.
func Compile(schema map[string]interface{}) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// ValidateJSON validates a raw JSON document. A malformed document is
// reported as a validation failure, not as an error.
func (v *Validator) ValidateJSON(document []byte) *ValidationResult {
	if !json.Valid(document) {
		return &ValidationResult{Errors: []ValidationError{{
			Field:   "(root)",
			Message: "document is not valid JSON",
			Code:    "INVALID_JSON",
		}}}
	}
	res, err := v.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return &ValidationResult{Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "INVALID_JSON"}}}
	}
	return convert(res)
}

// ValidateInput validates a decoded value against a schema in one step.
func ValidateInput(input interface{}, schema map[string]interface{}) (*ValidationResult, error) {
	res, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(input))
	if err != nil {
		return nil, fmt.Errorf("validate input: %w", err)
	}
	return convert(res), nil
}

func convert(res *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: res.Valid()}
	for _, e := range res.Errors() {
		field := e.Field()
		if e.Type() == "required" {
			if prop, ok := e.Details()["property"]; ok {
				if field == "(root)" {
					field = fmt.Sprint(prop)
				} else {
					field = field + "." + fmt.Sprint(prop)
				}
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}

// Summary joins every message into one line for job error details.
func (vr *ValidationResult) Summary() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

// ValidateActivityNaming validates activity ID follows naming convention
func ValidateActivityNaming(activityID string) error {
	if !activityNaming.MatchString(activityID) {
		return fmt.Errorf("activity ID must follow format: domain.subdomain.action (e.g., nlq.query.analyze)")
	}
	return nil
}
