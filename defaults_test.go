package studio_test

import (
	"reflect"
	"testing"

	studio "github.com/Epistates/turbomcpstudio-sub004"
)

func TestGenerateDefaultsPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		schema *studio.Schema
		want   any
	}{
		{
			name:   "const wins over enum and default",
			schema: &studio.Schema{Type: "string", Const: "fixed", Enum: []any{"a"}, Default: "b"},
			want:   "fixed",
		},
		{
			name:   "first enum member wins over default",
			schema: &studio.Schema{Type: "string", Enum: []any{"first", "second"}, Default: "b"},
			want:   "first",
		},
		{
			name:   "explicit default",
			schema: &studio.Schema{Type: "number", Default: float64(7)},
			want:   float64(7),
		},
		{
			name:   "string fallback",
			schema: &studio.Schema{Type: "string"},
			want:   "",
		},
		{
			name:   "number fallback uses minimum",
			schema: &studio.Schema{Type: "number", Minimum: f64p(5)},
			want:   float64(5),
		},
		{
			name:   "number fallback without minimum",
			schema: &studio.Schema{Type: "integer"},
			want:   float64(0),
		},
		{
			name:   "boolean fallback",
			schema: &studio.Schema{Type: "boolean"},
			want:   false,
		},
		{
			name:   "array fallback",
			schema: &studio.Schema{Type: "array"},
			want:   []any{},
		},
		{
			name:   "untyped schema yields nil",
			schema: &studio.Schema{},
			want:   nil,
		},
		{
			name: "object built recursively",
			schema: &studio.Schema{
				Type: "object",
				Properties: map[string]*studio.Schema{
					"name":  {Type: "string", Default: "anon"},
					"count": {Type: "number"},
				},
			},
			want: map[string]any{"name": "anon", "count": float64(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := studio.GenerateDefaults(tt.schema)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GenerateDefaults() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestGenerateDefaultsCyclicSchemaTerminates(t *testing.T) {
	schema := &studio.Schema{Type: "object"}
	schema.Properties = map[string]*studio.Schema{"self": schema}

	got, ok := studio.GenerateDefaults(schema).(map[string]any)
	if !ok {
		t.Fatalf("GenerateDefaults() = %T, want map[string]any", studio.GenerateDefaults(schema))
	}
	if _, present := got["self"]; !present {
		t.Error("cyclic property missing from the synthesized object")
	}
}

func TestGenerateDefaultsRoundTrip(t *testing.T) {
	// Every property with an explicit const, enum, or default must validate
	// cleanly against its own schema after synthesis.
	schema := &studio.Schema{
		Type: "object",
		Properties: map[string]*studio.Schema{
			"mode":  {Type: "string", Const: "interactive"},
			"level": {Type: "string", Enum: []any{"low", "high"}},
			"count": {Type: "integer", Default: float64(3), Minimum: f64p(1)},
		},
	}

	defaults, ok := studio.GenerateDefaults(schema).(map[string]any)
	if !ok {
		t.Fatalf("GenerateDefaults() = %T, want map[string]any", studio.GenerateDefaults(schema))
	}

	result := studio.ValidateObject(defaults, schema)
	if !result.IsValid {
		t.Errorf("synthesized defaults do not validate: %v", result.Errors)
	}
}
