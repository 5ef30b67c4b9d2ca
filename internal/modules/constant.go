package modules

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shaiso/Pipeflow/internal/engine"
)

// Имена встроенных типов.
const (
	TypeModule   engine.Type = "Module"
	TypeVariant  engine.Type = "Variant"
	TypeConstant engine.Type = "Constant"

	TypeInteger = engine.TypeInteger
	TypeFloat   = engine.TypeFloat
	TypeString  = engine.TypeString
	TypeBoolean = engine.TypeBoolean
	TypeList    = engine.TypeList
	TypeDict    = engine.TypeDict
)

// abstractModule — логика абстрактных типов: compute не реализован.
type abstractModule struct {
	engine.Abstract
}

// Constant публикует значение входа "value", приведённое к своему типу.
type Constant struct {
	typ     engine.Type
	convert func(any) (any, error)
}

// NewConstant создаёт логику Constant типа.
func NewConstant(typ engine.Type, convert func(any) (any, error)) *Constant {
	return &Constant{typ: typ, convert: convert}
}

// Compute реализует engine.Computer.
func (c *Constant) Compute(m *engine.Module) error {
	if err := m.CheckInputPort("value"); err != nil {
		return err
	}
	raw, err := m.GetInputFromPort("value")
	if err != nil {
		return err
	}
	v, err := c.convert(raw)
	if err != nil {
		return engine.ModuleErrorf(m, "invalid %s value: %v", c.typ, err)
	}
	m.SetResult("value", v, c.typ)
	return nil
}

func registerConstants(r *Registry) {
	r.MustRegister(&Descriptor{
		Name:     TypeConstant,
		Parent:   TypeModule,
		Abstract: true,
		New:      func() engine.Computer { return abstractModule{} },
		Inputs:   []PortSpec{{Name: "value"}},
		Outputs:  []PortSpec{{Name: "value"}},
	})

	constants := []struct {
		name    engine.Type
		convert func(any) (any, error)
	}{
		{TypeInteger, toInteger},
		{TypeFloat, toFloat},
		{TypeString, toString},
		{TypeBoolean, toBoolean},
		{TypeList, toList},
		{TypeDict, toDict},
	}
	for _, c := range constants {
		r.MustRegister(&Descriptor{
			Name:    c.name,
			Parent:  TypeConstant,
			Convert: c.convert,
			New:     func() engine.Computer { return NewConstant(c.name, c.convert) },
			Outputs: []PortSpec{{Name: "value", Types: []engine.Type{c.name}}},
		})
	}
}

func toInteger(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return nil, fmt.Errorf("%v has a fractional part", n)
		}
		if n < math.MinInt || n >= math.MaxInt {
			return nil, fmt.Errorf("%v overflows Integer", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return nil, fmt.Errorf("cannot convert %T to Integer", v)
}

func toFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return nil, fmt.Errorf("cannot convert %T to Float", v)
}

func toString(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	case nil:
		return nil, fmt.Errorf("cannot convert nil to String")
	}
	return fmt.Sprint(v), nil
}

func toBoolean(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	}
	return nil, fmt.Errorf("cannot convert %T to Boolean", v)
}

func toList(v any) (any, error) {
	switch l := v.(type) {
	case []any:
		return l, nil
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %T to List", v)
}

func toDict(v any) (any, error) {
	if d, ok := v.(map[string]any); ok {
		return d, nil
	}
	return nil, fmt.Errorf("cannot convert %T to Dictionary", v)
}
