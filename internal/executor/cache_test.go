package executor

import (
	"testing"

	"github.com/shaiso/Pipeflow/internal/domain"
	"github.com/shaiso/Pipeflow/internal/engine"
	"github.com/shaiso/Pipeflow/internal/modules"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()

	if _, ok := c.Get(1); ok {
		t.Error("expected miss on empty cache")
	}

	outputs := map[string]engine.Output{"value": {Value: 1, Type: engine.TypeInteger}}
	c.Put(1, outputs)
	outputs["value"] = engine.Output{Value: 2}

	got, ok := c.Get(1)
	if !ok {
		t.Fatal("expected hit")
	}
	if got["value"].Value != 1 {
		t.Errorf("cache must keep its own copy, got %v", got["value"].Value)
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", c.Len())
	}
}

func TestSignatures(t *testing.T) {
	r := modules.DefaultRegistry()

	build := func(value float64) (map[string]uint64, map[string]bool) {
		spec := &domain.PipelineSpec{
			Modules: []domain.ModuleDef{
				{ID: "x", Type: "Integer", Params: map[string]any{"value": value}},
				{ID: "now", Type: "Timestamp"},
				{ID: "list", Type: "ListOf"},
			},
			Connections: []domain.ConnectionDef{
				{From: "x", FromPort: "value", To: "list", ToPort: "item"},
				{From: "now", FromPort: "value", To: "list", ToPort: "item"},
			},
		}
		dag, err := engine.BuildDAG(spec)
		if err != nil {
			t.Fatalf("build dag: %v", err)
		}
		p := engine.NewPipeline(r)
		mods := make(map[string]*engine.Module)
		for _, def := range spec.Modules {
			m, err := r.Instantiate(p, engine.Type(def.Type), def.ID)
			if err != nil {
				t.Fatalf("instantiate: %v", err)
			}
			mods[def.ID] = m
		}
		sigs, tainted, err := signatures(spec, dag, mods)
		if err != nil {
			t.Fatalf("signatures: %v", err)
		}
		return sigs, tainted
	}

	a, tainted := build(1)
	b, _ := build(1)
	c, _ := build(2)

	if a["x"] != b["x"] || a["list"] != b["list"] {
		t.Error("same pipeline must give same signatures")
	}
	if a["x"] == c["x"] || a["list"] == c["list"] {
		t.Error("changed param must change the module and its dependents")
	}
	if a["now"] != c["now"] {
		t.Error("unrelated module signature must not change")
	}

	if tainted["x"] {
		t.Error("x is cacheable")
	}
	if !tainted["now"] || !tainted["list"] {
		t.Error("Timestamp and its dependents must be tainted")
	}
}
