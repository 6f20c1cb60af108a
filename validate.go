package studio

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"slices"
	"sort"
)

// maxValidateDepth bounds the recursive walk. The elicitation dialect never
// nests this deep; the guard exists so a pathological or cyclic schema source
// degrades to a diagnostic instead of exhausting the stack.
const maxValidateDepth = 128

// Validate checks value against schema and returns every constraint failure
// found, each qualified with the structural path of the failing value.
//
// A nil or absent value passes silently: required-ness is a property of an
// enclosing object and is enforced only by ValidateObject. A type mismatch is
// reported but does not suppress the remaining constraint checks, and a
// malformed constraint (such as an unparseable pattern) degrades to an issue
// on that property alone. Validate never panics; any unexpected failure
// during traversal is converted into a single generic issue.
func Validate(value any, schema *Schema) (result ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = newValidationResult([]ValidationIssue{{
				Path:    "root",
				Message: fmt.Sprintf("validation aborted by internal error: %v", r),
			}})
		}
	}()

	return newValidationResult(validateAt(value, schema, nil, 0))
}

// ValidateObject is the batch entry point for checking a property bag against
// an object schema. On top of per-property validation it enforces required
// fields, additionalProperties when explicitly set to false, and
// minProperties/maxProperties on the bag's own key count.
//
// A required field counts as missing when it is absent, nil, or the empty
// string. The empty-string rule is deliberate: elicitation forms submit
// untouched text inputs as "", and those must not satisfy a required field.
func ValidateObject(values map[string]any, schema *Schema) (result ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = newValidationResult([]ValidationIssue{{
				Path:    "root",
				Message: fmt.Sprintf("validation aborted by internal error: %v", r),
			}})
		}
	}()

	if schema == nil {
		return newValidationResult(nil)
	}

	var issues []ValidationIssue

	for _, name := range sortedKeys(schema.Properties) {
		value, ok := values[name]
		if !ok {
			continue
		}
		issues = append(issues, validateAt(value, schema.Properties[name], valuePath{propSegment(name)}, 0)...)
	}

	for _, name := range schema.Required {
		value, ok := values[name]
		if !ok || value == nil || value == "" {
			issues = append(issues, ValidationIssue{
				Path:       name,
				Message:    "field is required",
				Constraint: "required",
			})
		}
	}

	if schema.AdditionalProperties.Forbids() {
		for _, key := range sortedKeys(values) {
			if _, declared := schema.Properties[key]; !declared {
				issues = append(issues, ValidationIssue{
					Path:       key,
					Message:    fmt.Sprintf("property %q is not declared in the schema", key),
					Constraint: "additionalProperties",
				})
			}
		}
	}

	if schema.MinProperties != nil && len(values) < *schema.MinProperties {
		issues = append(issues, ValidationIssue{
			Path:       "root",
			Message:    fmt.Sprintf("object has fewer than %d properties", *schema.MinProperties),
			Constraint: "minProperties",
		})
	}
	if schema.MaxProperties != nil && len(values) > *schema.MaxProperties {
		issues = append(issues, ValidationIssue{
			Path:       "root",
			Message:    fmt.Sprintf("object has more than %d properties", *schema.MaxProperties),
			Constraint: "maxProperties",
		})
	}

	return newValidationResult(issues)
}

// IsRequired reports whether the named property is listed in the schema's
// required array.
func IsRequired(name string, schema *Schema) bool {
	if schema == nil {
		return false
	}
	return slices.Contains(schema.Required, name)
}

func newValidationResult(issues []ValidationIssue) ValidationResult {
	if issues == nil {
		issues = []ValidationIssue{}
	}
	return ValidationResult{
		IsValid: len(issues) == 0,
		Errors:  issues,
	}
}

// validateAt performs the depth-first walk. The path identifies the current
// position in the value tree and is extended on every descent; issues are
// returned rather than accumulated in shared state so sub-validations for
// combinators can be discarded.
func validateAt(value any, schema *Schema, path valuePath, depth int) []ValidationIssue {
	if schema == nil || value == nil {
		return nil
	}
	if depth > maxValidateDepth {
		return []ValidationIssue{{
			Path:       path.String(),
			Message:    "maximum validation depth exceeded",
			Constraint: "maxDepth",
		}}
	}

	var issues []ValidationIssue

	// A type mismatch is reported but does not stop the walk: the remaining
	// constraints still run against the value as typed. The secondary
	// diagnostics can look odd but never hide the primary one.
	if schema.Type != "" && !typeMatches(value, schema.Type) {
		issues = append(issues, ValidationIssue{
			Path:       path.String(),
			Message:    fmt.Sprintf("expected type %q, got %q", schema.Type, typeName(value)),
			Value:      value,
			Constraint: schema.Type,
		})
	}

	if schema.Const != nil && !reflect.DeepEqual(value, schema.Const) {
		issues = append(issues, ValidationIssue{
			Path:       path.String(),
			Message:    fmt.Sprintf("value must equal the constant %v", schema.Const),
			Value:      value,
			Constraint: "const",
		})
	}

	if len(schema.Enum) > 0 {
		match := false
		for _, allowed := range schema.Enum {
			if reflect.DeepEqual(value, allowed) {
				match = true
				break
			}
		}
		if !match {
			issues = append(issues, ValidationIssue{
				Path:       path.String(),
				Message:    "value is not one of the allowed enum values",
				Value:      value,
				Constraint: "enum",
			})
		}
	}

	switch v := value.(type) {
	case string:
		issues = append(issues, validateString(v, schema, path)...)
	case float64:
		issues = append(issues, validateNumber(v, schema, path)...)
	case []any:
		issues = append(issues, validateArray(v, schema, path, depth)...)
	case map[string]any:
		issues = append(issues, validateObjectValue(v, schema, path, depth)...)
	}

	issues = append(issues, validateCombinators(value, schema, path, depth)...)

	return issues
}

func validateString(v string, schema *Schema, path valuePath) []ValidationIssue {
	var issues []ValidationIssue

	length := len([]rune(v))
	if schema.MinLength != nil && length < *schema.MinLength {
		issues = append(issues, ValidationIssue{
			Path:       path.String(),
			Message:    fmt.Sprintf("string is shorter than minLength %d", *schema.MinLength),
			Value:      v,
			Constraint: "minLength",
		})
	}
	if schema.MaxLength != nil && length > *schema.MaxLength {
		issues = append(issues, ValidationIssue{
			Path:       path.String(),
			Message:    fmt.Sprintf("string is longer than maxLength %d", *schema.MaxLength),
			Value:      v,
			Constraint: "maxLength",
		})
	}

	if schema.Pattern != "" {
		// An unparseable pattern is the schema's fault, not the value's;
		// report it on this property and keep going.
		re, err := regexp.Compile(schema.Pattern)
		if err != nil {
			issues = append(issues, ValidationIssue{
				Path:       path.String(),
				Message:    fmt.Sprintf("invalid pattern %q: %v", schema.Pattern, err),
				Constraint: "pattern",
			})
		} else if !re.MatchString(v) {
			issues = append(issues, ValidationIssue{
				Path:       path.String(),
				Message:    fmt.Sprintf("string does not match pattern %q", schema.Pattern),
				Value:      v,
				Constraint: "pattern",
			})
		}
	}

	if schema.Format != "" && !checkFormat(schema.Format, v) {
		issues = append(issues, ValidationIssue{
			Path:       path.String(),
			Message:    fmt.Sprintf("string is not a valid %s", schema.Format),
			Value:      v,
			Constraint: "format",
		})
	}

	return issues
}

func validateNumber(v float64, schema *Schema, path valuePath) []ValidationIssue {
	var issues []ValidationIssue

	if schema.Minimum != nil && v < *schema.Minimum {
		issues = append(issues, ValidationIssue{
			Path:       path.String(),
			Message:    fmt.Sprintf("value is less than minimum %v", *schema.Minimum),
			Value:      v,
			Constraint: "minimum",
		})
	}
	if schema.Maximum != nil && v > *schema.Maximum {
		issues = append(issues, ValidationIssue{
			Path:       path.String(),
			Message:    fmt.Sprintf("value is greater than maximum %v", *schema.Maximum),
			Value:      v,
			Constraint: "maximum",
		})
	}
	if schema.ExclusiveMinimum != nil && v <= *schema.ExclusiveMinimum {
		issues = append(issues, ValidationIssue{
			Path:       path.String(),
			Message:    fmt.Sprintf("value is not greater than exclusiveMinimum %v", *schema.ExclusiveMinimum),
			Value:      v,
			Constraint: "exclusiveMinimum",
		})
	}
	if schema.ExclusiveMaximum != nil && v >= *schema.ExclusiveMaximum {
		issues = append(issues, ValidationIssue{
			Path:       path.String(),
			Message:    fmt.Sprintf("value is not less than exclusiveMaximum %v", *schema.ExclusiveMaximum),
			Value:      v,
			Constraint: "exclusiveMaximum",
		})
	}

	return issues
}

func validateArray(v []any, schema *Schema, path valuePath, depth int) []ValidationIssue {
	var issues []ValidationIssue

	if schema.MinItems != nil && len(v) < *schema.MinItems {
		issues = append(issues, ValidationIssue{
			Path:       path.String(),
			Message:    fmt.Sprintf("array has fewer than %d items", *schema.MinItems),
			Constraint: "minItems",
		})
	}
	if schema.MaxItems != nil && len(v) > *schema.MaxItems {
		issues = append(issues, ValidationIssue{
			Path:       path.String(),
			Message:    fmt.Sprintf("array has more than %d items", *schema.MaxItems),
			Constraint: "maxItems",
		})
	}

	if schema.UniqueItems {
		// Canonical serialization makes structurally equal elements compare
		// equal regardless of map key order; every repeat is flagged at its
		// own index.
		seen := make(map[string]bool, len(v))
		for i, elem := range v {
			key := canonicalKey(elem)
			if seen[key] {
				issues = append(issues, ValidationIssue{
					Path:       path.element(i).String(),
					Message:    "array items are not unique",
					Value:      elem,
					Constraint: "uniqueItems",
				})
				continue
			}
			seen[key] = true
		}
	}

	if schema.Items != nil {
		switch {
		case schema.Items.Single != nil:
			for i, elem := range v {
				issues = append(issues, validateAt(elem, schema.Items.Single, path.element(i), depth+1)...)
			}
		case schema.Items.Tuple != nil:
			// Elements beyond the tuple length are unchecked; the dialect has
			// no additionalItems.
			for i, elem := range v {
				if i >= len(schema.Items.Tuple) {
					break
				}
				issues = append(issues, validateAt(elem, schema.Items.Tuple[i], path.element(i), depth+1)...)
			}
		}
	}

	return issues
}

func validateObjectValue(v map[string]any, schema *Schema, path valuePath, depth int) []ValidationIssue {
	var issues []ValidationIssue

	for _, name := range sortedKeys(schema.Properties) {
		child, ok := v[name]
		if !ok {
			continue
		}
		issues = append(issues, validateAt(child, schema.Properties[name], path.child(name), depth+1)...)
	}

	// Undeclared keys are walked only when additionalProperties constrains
	// them with a schema of its own.
	if schema.AdditionalProperties != nil && schema.AdditionalProperties.Schema != nil {
		for _, key := range sortedKeys(v) {
			if _, declared := schema.Properties[key]; declared {
				continue
			}
			issues = append(issues, validateAt(v[key], schema.AdditionalProperties.Schema, path.child(key), depth+1)...)
		}
	}

	return issues
}

// validateCombinators runs the logical combinators independently of the type
// and constraint checks above. Sub-validation results are discarded for anyOf
// and oneOf; only allOf merges member errors into the parent result.
func validateCombinators(value any, schema *Schema, path valuePath, depth int) []ValidationIssue {
	var issues []ValidationIssue

	if len(schema.AnyOf) > 0 {
		matched := false
		for _, member := range schema.AnyOf {
			if len(validateAt(value, member, path, depth+1)) == 0 {
				matched = true
				break
			}
		}
		if !matched {
			issues = append(issues, ValidationIssue{
				Path:       path.String(),
				Message:    "value does not match any of the schemas in anyOf",
				Value:      value,
				Constraint: "anyOf",
			})
		}
	}

	if len(schema.OneOf) > 0 {
		matches := 0
		for _, member := range schema.OneOf {
			if len(validateAt(value, member, path, depth+1)) == 0 {
				matches++
			}
		}
		switch {
		case matches == 0:
			issues = append(issues, ValidationIssue{
				Path:       path.String(),
				Message:    "value does not match any of the schemas in oneOf",
				Value:      value,
				Constraint: "oneOf",
			})
		case matches > 1:
			issues = append(issues, ValidationIssue{
				Path:       path.String(),
				Message:    "value matches more than one schema in oneOf",
				Value:      value,
				Constraint: "oneOf",
			})
		}
	}

	for _, member := range schema.AllOf {
		issues = append(issues, validateAt(value, member, path, depth+1)...)
	}

	if schema.Not != nil {
		if len(validateAt(value, schema.Not, path, depth+1)) == 0 {
			issues = append(issues, ValidationIssue{
				Path:       path.String(),
				Message:    "value must not match the schema in not",
				Value:      value,
				Constraint: "not",
			})
		}
	}

	return issues
}

// typeMatches compares the runtime shape of value against a schema type tag.
// The integer tag additionally requires a whole number.
func typeMatches(value any, typ string) bool {
	switch typ {
	case "integer":
		f, ok := value.(float64)
		return ok && !math.IsInf(f, 0) && !math.IsNaN(f) && math.Trunc(f) == f
	case "null":
		return value == nil
	default:
		return typeName(value) == typ
	}
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// canonicalKey serializes a value for structural comparison. encoding/json
// sorts map keys, so equal objects produce equal keys.
func canonicalKey(value any) string {
	bs, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("!%v", value)
	}
	return string(bs)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
