package studio

import "fmt"

// elicitationFormats is the narrowed format allow-list for elicitation
// string fields. Formats outside this list are advisory only: some clients
// render them fine, so they warn instead of erroring.
var elicitationFormats = map[string]bool{
	"email":     true,
	"uri":       true,
	"date":      true,
	"date-time": true,
}

// primitiveTypes are the only property types the elicitation dialect allows.
var primitiveTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
}

// CheckElicitationSchema checks whether schema is legal under the protocol's
// elicitation dialect: an object root whose properties are flat primitive
// fields with a curated set of constraints. It inspects the schema tree only,
// never data values, and it never blocks anything - callers decide what to do
// with the diagnostics.
//
// Errors make the schema non-conformant. Warnings flag constructs that are
// legal JSON Schema but unreliable across elicitation clients, and info
// entries are usability hints; both ride in the result's Warnings list and
// never affect Valid.
func CheckElicitationSchema(schema *Schema) ConformanceResult {
	c := &conformanceCheck{}

	if schema == nil {
		c.error("root", "type", "schema is missing", `provide an object schema with a "properties" map`)
		return c.result()
	}

	if schema.Type != "object" {
		c.error("root", "type",
			fmt.Sprintf("root type must be \"object\", got %q", schema.Type),
			`set "type": "object" at the schema root`)
	}

	if len(schema.Properties) == 0 {
		c.warn("root", "properties", "schema declares no properties",
			"an empty form is legal but collects nothing; declare at least one field")
	}

	for _, name := range sortedKeys(schema.Properties) {
		c.checkProperty(name, schema.Properties[name])
	}

	c.checkRequired(schema)

	return c.result()
}

type conformanceCheck struct {
	errors   []ConformanceIssue
	warnings []ConformanceIssue
}

func (c *conformanceCheck) error(path, field, msg, suggestion string) {
	c.errors = append(c.errors, ConformanceIssue{
		Path: path, Field: field, Error: msg,
		Severity: SeverityError, Suggestion: suggestion,
	})
}

func (c *conformanceCheck) warn(path, field, msg, suggestion string) {
	c.warnings = append(c.warnings, ConformanceIssue{
		Path: path, Field: field, Error: msg,
		Severity: SeverityWarning, Suggestion: suggestion,
	})
}

func (c *conformanceCheck) info(path, field, msg, suggestion string) {
	c.warnings = append(c.warnings, ConformanceIssue{
		Path: path, Field: field, Error: msg,
		Severity: SeverityInfo, Suggestion: suggestion,
	})
}

func (c *conformanceCheck) result() ConformanceResult {
	errors := c.errors
	if errors == nil {
		errors = []ConformanceIssue{}
	}
	warnings := c.warnings
	if warnings == nil {
		warnings = []ConformanceIssue{}
	}
	return ConformanceResult{
		Valid:    len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}
}

func (c *conformanceCheck) checkProperty(name string, prop *Schema) {
	if prop == nil {
		c.error(name, "type", "property schema is missing",
			"declare a schema with one of the primitive types: string, number, integer, boolean")
		return
	}

	c.checkUnsupportedFeatures(name, prop)

	switch {
	case prop.Type == "":
		c.error(name, "type", "property is missing a type",
			"declare one of the primitive types: string, number, integer, boolean")
	case !primitiveTypes[prop.Type]:
		c.error(name, "type",
			fmt.Sprintf("type %q is not allowed in elicitation schemas", prop.Type),
			"use one of the primitive types: string, number, integer, boolean")
		// The two most common violations get a second, targeted message.
		switch prop.Type {
		case "object":
			c.error(name, "type", "nested objects are not allowed",
				"flatten the schema into top-level primitive fields")
		case "array":
			c.error(name, "type", "arrays are not allowed",
				"use multiple fields or a single delimited string field")
		}
	}

	switch prop.Type {
	case "string":
		c.checkStringProperty(name, prop)
	case "number", "integer":
		c.checkNumericProperty(name, prop)
	}

	if prop.Title == "" && prop.Description == "" {
		c.info(name, "title", "property has neither a title nor a description",
			"add a title or description so users know what to enter")
	}
}

func (c *conformanceCheck) checkStringProperty(name string, prop *Schema) {
	if prop.Format != "" && !elicitationFormats[prop.Format] {
		c.warn(name, "format",
			fmt.Sprintf("format %q is outside the elicitation allow-list", prop.Format),
			"use one of: email, uri, date, date-time")
	}

	if prop.MinLength != nil && prop.MaxLength != nil && *prop.MinLength > *prop.MaxLength {
		c.error(name, "minLength",
			fmt.Sprintf("minLength %d is greater than maxLength %d", *prop.MinLength, *prop.MaxLength),
			"swap or correct the length bounds")
	}

	for i, entry := range prop.Enum {
		if _, ok := entry.(string); !ok {
			c.error(name, fmt.Sprintf("enum[%d]", i),
				fmt.Sprintf("enum values of a string property must be strings, index %d is %s", i, typeName(entry)),
				"quote the value or remove it from the enum")
		}
	}
}

func (c *conformanceCheck) checkNumericProperty(name string, prop *Schema) {
	if prop.Minimum != nil && prop.Maximum != nil && *prop.Minimum > *prop.Maximum {
		c.error(name, "minimum",
			fmt.Sprintf("minimum %v is greater than maximum %v", *prop.Minimum, *prop.Maximum),
			"swap or correct the numeric bounds")
	}

	if prop.Type != "integer" {
		return
	}
	bounds := []struct {
		field string
		value *float64
	}{
		{"minimum", prop.Minimum},
		{"maximum", prop.Maximum},
		{"exclusiveMinimum", prop.ExclusiveMinimum},
		{"exclusiveMaximum", prop.ExclusiveMaximum},
	}
	for _, b := range bounds {
		if b.value != nil && *b.value != float64(int64(*b.value)) {
			c.warn(name, b.field,
				fmt.Sprintf("%s %v is not an integer on an integer-typed property", b.field, *b.value),
				"use a whole-number bound")
		}
	}
}

// checkUnsupportedFeatures flags schema keywords that are legal JSON Schema
// but outside the elicitation dialect. Each one is a warning naming the exact
// feature so authoring UIs can point at it.
func (c *conformanceCheck) checkUnsupportedFeatures(name string, prop *Schema) {
	features := []struct {
		field   string
		present bool
	}{
		{"allOf", len(prop.AllOf) > 0},
		{"anyOf", len(prop.AnyOf) > 0},
		{"oneOf", len(prop.OneOf) > 0},
		{"not", prop.Not != nil},
		{"if", prop.If != nil},
		{"then", prop.Then != nil},
		{"else", prop.Else != nil},
		{"dependencies", len(prop.Dependencies) > 0},
		{"dependentRequired", len(prop.DependentRequired) > 0},
		{"dependentSchemas", len(prop.DependentSchemas) > 0},
		{"$ref", prop.Ref != ""},
		{"definitions", len(prop.Definitions) > 0},
		{"$defs", len(prop.Defs) > 0},
		{"properties", len(prop.Properties) > 0},
		{"items", prop.Items != nil},
	}

	for _, f := range features {
		if !f.present {
			continue
		}
		c.warn(name, f.field,
			fmt.Sprintf("%q is not supported by the elicitation dialect", f.field),
			"simplify the property to a flat primitive field")
	}
}

func (c *conformanceCheck) checkRequired(schema *Schema) {
	for i, name := range schema.Required {
		if _, ok := schema.Properties[name]; !ok {
			c.error("root", fmt.Sprintf("required[%d]", i),
				fmt.Sprintf("required entry %q does not match any declared property", name),
				"remove the entry or declare the property")
		}
	}

	if len(schema.Required) == 0 && len(schema.Properties) > 0 {
		c.info("root", "required", "no fields are required",
			"mark at least one field required if the form must collect something")
	}
}
