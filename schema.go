package studio

import (
	"encoding/json"
	"fmt"
)

// Schema is a JSON-Schema-like structural definition. It describes the shape
// and constraints of a value: a primitive or composite type tag plus
// type-appropriate constraint fields, cross-cutting annotations, and logical
// combinators whose members are themselves Schema nodes.
//
// A Schema is read-only input to the engine. Neither validation nor
// conformance checking ever mutates the tree, so a single Schema may be shared
// freely across concurrent callers.
type Schema struct {
	// Type is one of "string", "number", "integer", "boolean", "array",
	// "object" or "null". An empty Type leaves the value's shape
	// unconstrained.
	Type string `json:"type,omitempty"`

	// String constraints.
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Format    string `json:"format,omitempty"`

	// Numeric constraints. Minimum and Maximum are inclusive bounds; the
	// exclusive variants are strict.
	Minimum          *float64 `json:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty"`

	// Array constraints. Items carries either a single schema applied to
	// every element or an ordered tuple of schemas applied positionally.
	Items       *SchemaItems `json:"items,omitempty"`
	MinItems    *int         `json:"minItems,omitempty"`
	MaxItems    *int         `json:"maxItems,omitempty"`
	UniqueItems bool         `json:"uniqueItems,omitempty"`

	// Object constraints.
	Properties           map[string]*Schema    `json:"properties,omitempty"`
	Required             []string              `json:"required,omitempty"`
	AdditionalProperties *AdditionalProperties `json:"additionalProperties,omitempty"`
	MinProperties        *int                  `json:"minProperties,omitempty"`
	MaxProperties        *int                  `json:"maxProperties,omitempty"`

	// Cross-cutting fields.
	Enum        []any  `json:"enum,omitempty"`
	Const       any    `json:"const,omitempty"`
	Default     any    `json:"default,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Examples    []any  `json:"examples,omitempty"`

	// Combinators. Members are validated recursively; If/Then/Else is
	// recognized only so the conformance profile can flag it, the validator
	// never evaluates it.
	AnyOf []*Schema `json:"anyOf,omitempty"`
	OneOf []*Schema `json:"oneOf,omitempty"`
	AllOf []*Schema `json:"allOf,omitempty"`
	Not   *Schema   `json:"not,omitempty"`
	If    *Schema   `json:"if,omitempty"`
	Then  *Schema   `json:"then,omitempty"`
	Else  *Schema   `json:"else,omitempty"`

	// Reference and dependency keywords. None of these are resolved or
	// evaluated; they exist so the conformance profile can name them when a
	// schema strays outside the elicitation dialect.
	Ref               string                     `json:"$ref,omitempty"`
	Defs              map[string]*Schema         `json:"$defs,omitempty"`
	Definitions       map[string]*Schema         `json:"definitions,omitempty"`
	Dependencies      map[string]json.RawMessage `json:"dependencies,omitempty"`
	DependentRequired map[string][]string        `json:"dependentRequired,omitempty"`
	DependentSchemas  map[string]*Schema         `json:"dependentSchemas,omitempty"`
}

// SchemaItems holds the "items" keyword, which can be either a single schema
// applied to every array element or a list of schemas applied positionally
// (tuple mode). It handles automatic conversion between the two wire shapes
// during JSON marshaling/unmarshaling.
type SchemaItems struct {
	// Single is set when items is a lone schema object.
	Single *Schema
	// Tuple is set when items is an array of schemas.
	Tuple []*Schema
}

// UnmarshalJSON implements json.Unmarshaler, accepting both the object and
// the array form of the items keyword.
func (s *SchemaItems) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var tuple []*Schema
		if err := json.Unmarshal(data, &tuple); err != nil {
			return err
		}
		s.Single = nil
		s.Tuple = tuple
		return nil
	}

	var single Schema
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	s.Single = &single
	s.Tuple = nil
	return nil
}

// MarshalJSON implements json.Marshaler, emitting whichever form is set.
func (s SchemaItems) MarshalJSON() ([]byte, error) {
	if s.Tuple != nil {
		return json.Marshal(s.Tuple)
	}
	if s.Single != nil {
		return json.Marshal(s.Single)
	}
	return []byte("null"), nil
}

// AdditionalProperties holds the "additionalProperties" keyword, which can be
// either a boolean switch or a schema applied to undeclared keys.
type AdditionalProperties struct {
	// Allowed is set when additionalProperties is a boolean.
	Allowed *bool
	// Schema is set when additionalProperties is a schema object.
	Schema *Schema
}

// Forbids reports whether additional properties are explicitly disallowed.
func (a *AdditionalProperties) Forbids() bool {
	return a != nil && a.Allowed != nil && !*a.Allowed
}

// UnmarshalJSON implements json.Unmarshaler, accepting both the boolean and
// the schema form of the additionalProperties keyword.
func (a *AdditionalProperties) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		a.Allowed = &b
		a.Schema = nil
		return nil
	}

	var sch Schema
	if err := json.Unmarshal(data, &sch); err != nil {
		return fmt.Errorf("additionalProperties must be a boolean or a schema: %w", err)
	}
	a.Allowed = nil
	a.Schema = &sch
	return nil
}

// MarshalJSON implements json.Marshaler, emitting whichever form is set.
func (a AdditionalProperties) MarshalJSON() ([]byte, error) {
	if a.Allowed != nil {
		return json.Marshal(*a.Allowed)
	}
	if a.Schema != nil {
		return json.Marshal(a.Schema)
	}
	return []byte("null"), nil
}

// ValidationIssue describes a single constraint failure found while
// validating a value against a Schema. Every issue is a failure; this layer
// has no severity tiers.
type ValidationIssue struct {
	// Path locates the failing value, rendered dotted/bracketed
	// (e.g. "user.tags[2]"); "root" denotes the top-level value.
	Path string `json:"path"`
	// Message is a human-readable description of the failure.
	Message string `json:"message"`
	// Value is the offending value, when one exists.
	Value any `json:"value,omitempty"`
	// Constraint names the violated constraint, such as the expected type
	// for a type mismatch or "required" for a missing field.
	Constraint string `json:"constraint,omitempty"`
}

// ValidationResult is the outcome of validating a value against a Schema.
// IsValid always agrees with the error count: it is true iff Errors is empty.
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Severity classifies a conformance issue. Errors make the schema
// non-conformant; warnings and info entries are advisory and never affect
// validity.
type Severity string

// Severity tiers for conformance issues.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ConformanceIssue describes a single way a schema strays from the
// elicitation dialect. Unlike ValidationIssue it carries a severity tier and
// an optional remediation hint for schema authors.
type ConformanceIssue struct {
	// Path locates the offending property; "root" denotes the schema root.
	Path string `json:"path"`
	// Field names the schema keyword at fault, such as "type" or "enum[1]".
	Field string `json:"field"`
	// Error is a human-readable description of the problem.
	Error string `json:"error"`
	// Severity is error, warning or info.
	Severity Severity `json:"severity"`
	// Suggestion, when present, is a one-line remediation hint.
	Suggestion string `json:"suggestion,omitempty"`
}

// ConformanceResult is the outcome of checking a schema against the
// elicitation dialect. Valid is true iff Errors is empty; Warnings holds both
// warning- and info-tier issues and never affects Valid.
type ConformanceResult struct {
	Valid    bool               `json:"valid"`
	Errors   []ConformanceIssue `json:"errors"`
	Warnings []ConformanceIssue `json:"warnings"`
}
