package studio

// GenerateDefaults synthesizes a value that pre-populates a form built from
// schema. Precedence per node: const, then the first enum member, then an
// explicit default, then a zero-ish fallback for the declared type. Object
// schemas are built recursively from their properties.
//
// The result is a convenience for consumers only; validation never consults
// it.
func GenerateDefaults(schema *Schema) any {
	return generateDefaults(schema, 0)
}

func generateDefaults(schema *Schema, depth int) any {
	if schema == nil || depth > maxValidateDepth {
		return nil
	}

	if schema.Const != nil {
		return schema.Const
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}
	if schema.Default != nil {
		return schema.Default
	}

	switch schema.Type {
	case "string":
		return ""
	case "number", "integer":
		if schema.Minimum != nil {
			return *schema.Minimum
		}
		return float64(0)
	case "boolean":
		return false
	case "array":
		return []any{}
	case "object":
		obj := make(map[string]any, len(schema.Properties))
		for _, name := range sortedKeys(schema.Properties) {
			obj[name] = generateDefaults(schema.Properties[name], depth+1)
		}
		return obj
	default:
		return nil
	}
}
