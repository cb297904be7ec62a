package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema defines the structure for input/output schemas
type JSONSchema struct {
	Type                 string              `json:"type"`
	Properties           map[string]Property `json:"properties"`
	Required             []string            `json:"required,omitempty"`
	AdditionalProperties bool                `json:"additionalProperties"`
}

type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Examples    []string            `json:"examples,omitempty"`
	MinLength   *int                `json:"minLength,omitempty"`
	MaxLength   *int                `json:"maxLength,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ToMap renders the schema as a generic JSON object.
func (s JSONSchema) ToMap() map[string]interface{} {
	raw, _ := json.Marshal(s)
	out := make(map[string]interface{})
	_ = json.Unmarshal(raw, &out)
	return out
}

// StringField is one input variable of a task.
type StringField struct {
	Name        string
	Description string
	Examples    []string
}

// TaskInputSchema describes the job variables a task needs: every field is a required
// string, empty strings are accepted, and other process variables pass through.
func TaskInputSchema(fields []StringField) JSONSchema {
	props := make(map[string]Property, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = Property{
			Type:        "string",
			Description: f.Description,
			Examples:    f.Examples,
		}
		required = append(required, f.Name)
	}
	return JSONSchema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: true,
	}
}

// TaskOutputSchema describes the variables a task-agent job completes with.
func TaskOutputSchema() JSONSchema {
	str := func(desc string) Property { return Property{Type: "string", Description: desc} }
	return JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"text":         str("Model output, or the \"Error: ...\" display string on failure"),
			"requestId":    str("Invocation identifier"),
			"category":     str("Task category"),
			"model":        str("Model identifier used for the call"),
			"error":        {Type: "boolean", Description: "True when the completion failed"},
			"errorKind":    str("Failure kind when error is true"),
			"errorCode":    str("COMPLETION_FAILED or RATE_LIMITED when error is true"),
			"errorMessage": str("Failure description when error is true"),
		},
		Required:             []string{"text", "requestId", "category", "model", "error"},
		AdditionalProperties: false,
	}
}

// Validator is a compiled schema. It is safe for concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
}

// Compile loads schema once so it can be applied to many documents.
func Compile(schema JSONSchema) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks input and reports every violation.
func (v *Validator) Validate(input map[string]interface{}) *ValidationResult {
	if input == nil {
		input = map[string]interface{}{}
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "DOCUMENT_UNREADABLE",
			}},
		}
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, ValidationError{
			Field:   fieldOf(desc),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}

	return &ValidationResult{
		Valid:  result.Valid(),
		Errors: errs,
	}
}

// ValidateInput compiles schema and validates input against it.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	v, err := Compile(schema)
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(schema)", Message: err.Error(), Code: "INVALID_SCHEMA"}},
		}
	}
	return v.Validate(input)
}

// fieldOf names the offending property; gojsonschema reports missing required
// properties against the root.
func fieldOf(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			return prop
		}
	}
	return desc.Field()
}

// ValidateActivityNaming validates activity ID follows naming convention
func ValidateActivityNaming(activityId string) error {
	namingPattern := regexp.MustCompile(`^[a-z]+\.[a-z]+\.[a-z]+$`)
	if !namingPattern.MatchString(activityId) {
		return fmt.Errorf("activity ID must follow format: domain.subdomain.action (e.g., dominion.legal.draft)")
	}
	return nil
}

// GetSchemaFromJSON parses JSON schema from string
func GetSchemaFromJSON(schemaJSON string) (JSONSchema, error) {
	var schema JSONSchema
	err := json.Unmarshal([]byte(schemaJSON), &schema)
	return schema, err
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
		if err.Field == field {
			return true
		}
	}
	return false
}
