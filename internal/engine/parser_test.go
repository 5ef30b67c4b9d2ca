package engine

import (
	"errors"
	"testing"
)

// fakeCatalog — справочник типов для тестов: тип → (входы, выходы).
type fakeCatalog map[string]struct {
	abstract bool
	inputs   []string
	outputs  []string
}

func (c fakeCatalog) HasType(typeName string) bool {
	_, ok := c[typeName]
	return ok
}

func (c fakeCatalog) IsAbstract(typeName string) bool { return c[typeName].abstract }

func (c fakeCatalog) HasInput(typeName, port string) bool {
	for _, p := range c[typeName].inputs {
		if p == port {
			return true
		}
	}
	return false
}

func (c fakeCatalog) HasOutput(typeName, port string) bool {
	for _, p := range c[typeName].outputs {
		if p == port {
			return true
		}
	}
	return false
}

var catalog = fakeCatalog{
	"Integer": {inputs: []string{"value"}, outputs: []string{"value", "self"}},
	"Calc":    {inputs: []string{"a", "b", "op"}, outputs: []string{"value", "self"}},
	"Module":  {abstract: true},
}

func TestParsePipelineSpec_Valid(t *testing.T) {
	data := []byte(`{
		"name": "sum",
		"modules": [
			{"id": "x", "type": "Integer", "params": {"value": 2}},
			{"id": "y", "type": "Integer", "params": {"value": 3}},
			{"id": "sum", "type": "Calc", "params": {"op": "+"}}
		],
		"connections": [
			{"from": "x", "from_port": "value", "to": "sum", "to_port": "a"},
			{"from": "y", "from_port": "value", "to": "sum", "to_port": "b"}
		]
	}`)

	spec, err := ParsePipelineSpec(data, catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Name != "sum" {
		t.Errorf("expected name sum, got %s", spec.Name)
	}
	if len(spec.Modules) != 3 || len(spec.Connections) != 2 {
		t.Errorf("expected 3 modules and 2 connections, got %d/%d", len(spec.Modules), len(spec.Connections))
	}
	if got := spec.Module("x").Params["value"]; got != float64(2) {
		t.Errorf("expected param 2, got %v", got)
	}
	if ups := spec.Upstream("sum"); len(ups) != 2 {
		t.Errorf("expected 2 upstream connections, got %d", len(ups))
	}
}

func TestParsePipelineSpec_InvalidJSON(t *testing.T) {
	if _, err := ParsePipelineSpec([]byte(`{"modules": [`), catalog); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr error
	}{
		{"empty", `{"modules": []}`, ErrEmptyModules},
		{"empty id", `{"modules": [{"id": "", "type": "Integer"}]}`, ErrEmptyModuleID},
		{"duplicate id", `{"modules": [{"id": "a", "type": "Integer"}, {"id": "a", "type": "Integer"}]}`, ErrDuplicateModuleID},
		{"unknown type", `{"modules": [{"id": "a", "type": "Teapot"}]}`, ErrUnknownModuleType},
		{"abstract type", `{"modules": [{"id": "a", "type": "Module"}]}`, ErrAbstractModuleType},
		{"unknown param", `{"modules": [{"id": "a", "type": "Integer", "params": {"nope": 1}}]}`, ErrUnknownPort},
		{
			"unknown output port",
			`{"modules": [{"id": "a", "type": "Integer"}, {"id": "b", "type": "Calc"}],
			  "connections": [{"from": "a", "from_port": "nope", "to": "b", "to_port": "a"}]}`,
			ErrUnknownPort,
		},
		{
			"unknown input port",
			`{"modules": [{"id": "a", "type": "Integer"}, {"id": "b", "type": "Calc"}],
			  "connections": [{"from": "a", "from_port": "value", "to": "b", "to_port": "nope"}]}`,
			ErrUnknownPort,
		},
		{
			"missing module",
			`{"modules": [{"id": "a", "type": "Integer"}],
			  "connections": [{"from": "a", "from_port": "value", "to": "b", "to_port": "a"}]}`,
			ErrMissingDependency,
		},
		{
			"cycle",
			`{"modules": [{"id": "a", "type": "Calc"}, {"id": "b", "type": "Calc"}],
			  "connections": [
			    {"from": "a", "from_port": "value", "to": "b", "to_port": "a"},
			    {"from": "b", "from_port": "value", "to": "a", "to_port": "a"}
			  ]}`,
			ErrCyclicDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePipelineSpec([]byte(tt.json), catalog)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidationError_Context(t *testing.T) {
	_, err := ParsePipelineSpec([]byte(`{"modules": [{"id": "a", "type": "Teapot"}]}`), catalog)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if vErr.ModuleID != "a" || vErr.Field != "type" {
		t.Errorf("unexpected context: %+v", vErr)
	}
}
