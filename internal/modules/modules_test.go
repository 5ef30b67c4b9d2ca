package modules

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/Pipeflow/internal/engine"
)

// source добавляет модуль, публикующий v на порту value.
func source(p *engine.Pipeline, label string, v any) *engine.Module {
	return p.Add(TypeVariant, label, engine.ComputeFunc(func(m *engine.Module) error {
		m.SetResult("value", v)
		return nil
	}))
}

func newModule(t *testing.T, r *Registry, p *engine.Pipeline, typ engine.Type) *engine.Module {
	t.Helper()
	m, err := r.Instantiate(p, typ, string(typ))
	if err != nil {
		t.Fatalf("instantiate %s: %v", typ, err)
	}
	return m
}

func connect(t *testing.T, p *engine.Pipeline, from *engine.Module, fromPort string, to *engine.Module, toPort string, spec ...engine.Type) {
	t.Helper()
	if _, err := p.Connect(from.ID(), fromPort, to.ID(), toPort, spec...); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func output(t *testing.T, m *engine.Module, port string) any {
	t.Helper()
	v, err := m.GetOutput(port)
	if err != nil {
		t.Fatalf("output %s.%s: %v", m, port, err)
	}
	return v
}

func TestConstant(t *testing.T) {
	r := DefaultRegistry()
	p := engine.NewPipeline(r)

	src := source(p, "raw", "42")
	c := newModule(t, r, p, TypeInteger)
	connect(t, p, src, "value", c, "value")

	if err := c.Update(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := output(t, c, "value"); got != 42 {
		t.Errorf("expected 42, got %v", got)
	}
	if typ, _ := c.GetOutputType("value"); typ != TypeInteger {
		t.Errorf("expected Integer, got %s", typ)
	}
}

func TestConstant_EachTypeConverts(t *testing.T) {
	tests := []struct {
		typ  engine.Type
		raw  any
		want any
	}{
		{TypeInteger, "7", 7},
		{TypeFloat, "2.5", 2.5},
		{TypeString, 7, "7"},
		{TypeBoolean, "true", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			r := DefaultRegistry()
			p := engine.NewPipeline(r)

			src := source(p, "raw", tt.raw)
			c := newModule(t, r, p, tt.typ)
			connect(t, p, src, "value", c, "value")

			if err := c.Update(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := output(t, c, "value"); got != tt.want {
				t.Errorf("expected %v (%T), got %v (%T)", tt.want, tt.want, got, got)
			}
			if typ, _ := c.GetOutputType("value"); typ != tt.typ {
				t.Errorf("expected %s, got %s", tt.typ, typ)
			}
		})
	}
}

func TestConstant_InvalidValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"not a number", "forty-two"},
		{"fractional", 2.5},
		{"above int range", 1e20},
		{"below int range", -1e20},
		{"infinity", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRegistry()
			p := engine.NewPipeline(r)

			src := source(p, "raw", tt.value)
			c := newModule(t, r, p, TypeInteger)
			connect(t, p, src, "value", c, "value")

			err := c.Update()
			if !errors.Is(err, engine.ErrModuleRuntime) {
				t.Fatalf("expected ErrModuleRuntime, got %v", err)
			}
			if engine.FailedModule(err) != c {
				t.Errorf("error should name the Integer module, got %v", engine.FailedModule(err))
			}
		})
	}
}

func TestCalc(t *testing.T) {
	tests := []struct {
		op   string
		want float64
	}{
		{"+", 8},
		{"-", 4},
		{"*", 12},
		{"/", 3},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			r := DefaultRegistry()
			p := engine.NewPipeline(r)

			calc := newModule(t, r, p, TypeCalc)
			connect(t, p, source(p, "a", 6), "value", calc, "a", numeric...)
			connect(t, p, source(p, "b", 2.0), "value", calc, "b", numeric...)
			connect(t, p, source(p, "op", tt.op), "value", calc, "op", TypeString)

			if err := calc.Update(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := output(t, calc, "value"); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCalc_Errors(t *testing.T) {
	r := DefaultRegistry()

	t.Run("division by zero", func(t *testing.T) {
		p := engine.NewPipeline(r)
		calc := newModule(t, r, p, TypeCalc)
		connect(t, p, source(p, "a", 1), "value", calc, "a", numeric...)
		connect(t, p, source(p, "b", 0), "value", calc, "b", numeric...)
		connect(t, p, source(p, "op", "/"), "value", calc, "op", TypeString)

		err := calc.Update()
		if !errors.Is(err, ErrDivisionByZero) || !errors.Is(err, engine.ErrModuleRuntime) {
			t.Errorf("expected division by zero module error, got %v", err)
		}
	})

	t.Run("unknown operator", func(t *testing.T) {
		p := engine.NewPipeline(r)
		calc := newModule(t, r, p, TypeCalc)
		connect(t, p, source(p, "a", 1), "value", calc, "a", numeric...)
		connect(t, p, source(p, "b", 1), "value", calc, "b", numeric...)
		connect(t, p, source(p, "op", "%"), "value", calc, "op", TypeString)

		if err := calc.Update(); !errors.Is(err, ErrUnknownOperator) {
			t.Errorf("expected ErrUnknownOperator, got %v", err)
		}
	})

	// String не подходит под порт a: connector отключается,
	// обязательный порт сообщает об отсутствии входа.
	t.Run("type mismatch", func(t *testing.T) {
		p := engine.NewPipeline(r)
		calc := newModule(t, r, p, TypeCalc)
		connect(t, p, source(p, "a", "one"), "value", calc, "a", numeric...)
		connect(t, p, source(p, "b", 1), "value", calc, "b", numeric...)

		err := calc.Update()
		if !errors.Is(err, engine.ErrMandatoryPortMissing) {
			t.Fatalf("expected ErrMandatoryPortMissing, got %v", err)
		}
		if calc.HasInputFromPort("a") {
			t.Error("mismatched connector should be detached")
		}
	})
}

func TestListOf(t *testing.T) {
	r := DefaultRegistry()
	p := engine.NewPipeline(r)

	list := newModule(t, r, p, TypeListOf)
	connect(t, p, source(p, "x", 1), "value", list, "item")
	connect(t, p, source(p, "y", "two"), "value", list, "item")

	if err := list.Update(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]any{1, "two"}, output(t, list, "value")); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}

	empty := newModule(t, r, p, TypeListOf)
	if err := empty.Update(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]any{}, output(t, empty, "value")); diff != "" {
		t.Errorf("unconnected port should give empty list (-want +got):\n%s", diff)
	}
}

func TestConcat(t *testing.T) {
	r := DefaultRegistry()
	p := engine.NewPipeline(r)

	concat := newModule(t, r, p, TypeConcat)
	connect(t, p, source(p, "a", "a"), "value", concat, "items")
	connect(t, p, source(p, "list", []any{1, 2}), "value", concat, "items")
	connect(t, p, source(p, "sep", "-"), "value", concat, "sep")

	if err := concat.Update(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := output(t, concat, "value"); got != "a-1-2" {
		t.Errorf("expected a-1-2, got %v", got)
	}
}

func TestFormat(t *testing.T) {
	r := DefaultRegistry()
	p := engine.NewPipeline(r)

	format := newModule(t, r, p, TypeFormat)
	connect(t, p, source(p, "tmpl", `{{ upper .Value }}: {{ join ", " .Values }}`), "value", format, "template")
	connect(t, p, source(p, "x", "ab"), "value", format, "value")
	connect(t, p, source(p, "y", 3), "value", format, "value")

	if err := format.Update(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := output(t, format, "value"); got != "AB: ab, 3" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		data    any
		want    string
		wantErr error
	}{
		{"plain", "no templates", nil, "no templates", nil},
		{"default", `{{ default "none" .Value }}`, FormatData{}, "none", nil},
		{"json", `{{ json .Values }}`, FormatData{Values: []any{1, "a"}}, `[1,"a"]`, nil},
		{"parse error", "{{ .Value ", nil, "", ErrTemplateParse},
		{"render error", "{{ .Missing }}", FormatData{}, "", ErrTemplateRender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestInputPort_PreferredOverPlainConnector(t *testing.T) {
	r := DefaultRegistry()
	p := engine.NewPipeline(r)

	in := newModule(t, r, p, TypeInputPort)
	connect(t, p, source(p, "default", "from adaptor"), "value", in, "Default")

	id := newModule(t, r, p, TypeIdentity)
	connect(t, p, source(p, "plain", "plain"), "value", id, "value")
	connect(t, p, in, "InternalPipe", id, "value")

	if err := id.Update(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := output(t, id, "value"); got != "from adaptor" {
		t.Errorf("expected adaptor value, got %v", got)
	}
	if len(id.Connectors("value")) != 2 {
		t.Error("lazy adaptor connector must not be detached")
	}
}

func TestInputPort_NoValue(t *testing.T) {
	r := DefaultRegistry()
	p := engine.NewPipeline(r)

	in := newModule(t, r, p, TypeInputPort)
	out := newModule(t, r, p, TypeOutputPort)
	connect(t, p, in, "InternalPipe", out, "InternalPipe")

	err := out.Update()
	if !errors.Is(err, ErrNoValue) {
		t.Errorf("expected ErrNoValue, got %v", err)
	}
}

func TestTimestamp(t *testing.T) {
	r := DefaultRegistry()
	p := engine.NewPipeline(r)

	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ts := p.Add(TypeTimestamp, "now", NewTimestamp(func() time.Time { return fixed }))

	if ts.IsCacheable() {
		t.Error("Timestamp must not be cacheable")
	}
	if err := ts.Update(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := output(t, ts, "value"); got != "2024-01-02T03:04:05Z" {
		t.Errorf("unexpected value %v", got)
	}
	if got := output(t, ts, "unix"); got != 1704164645 {
		t.Errorf("unexpected unix %v", got)
	}
}
