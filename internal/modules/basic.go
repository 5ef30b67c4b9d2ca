package modules

import (
	"fmt"
	"time"

	"github.com/shaiso/Pipeflow/internal/engine"
)

// Имена стандартных типов модулей.
const (
	TypeCalc       engine.Type = "Calc"
	TypeConcat     engine.Type = "Concat"
	TypeListOf     engine.Type = "ListOf"
	TypeFormat     engine.Type = "Format"
	TypeIdentity   engine.Type = "Identity"
	TypeInputPort  engine.Type = "InputPort"
	TypeOutputPort engine.Type = "OutputPort"
	TypeTimestamp  engine.Type = "Timestamp"
)

var numeric = []engine.Type{TypeInteger, TypeFloat}

func registerBasic(r *Registry) {
	r.MustRegister(&Descriptor{
		Name: TypeCalc,
		New:  func() engine.Computer { return &Calc{} },
		Inputs: []PortSpec{
			{Name: "a", Types: numeric},
			{Name: "b", Types: numeric},
			{Name: "op", Types: []engine.Type{TypeString}},
		},
		Outputs: []PortSpec{{Name: "value", Types: []engine.Type{TypeFloat}}},
	})

	r.MustRegister(&Descriptor{
		Name: TypeConcat,
		New:  func() engine.Computer { return &Concat{} },
		Inputs: []PortSpec{
			{Name: "items"},
			{Name: "sep", Types: []engine.Type{TypeString}},
		},
		Outputs: []PortSpec{{Name: "value", Types: []engine.Type{TypeString}}},
	})

	r.MustRegister(&Descriptor{
		Name:    TypeListOf,
		New:     func() engine.Computer { return &ListOf{} },
		Inputs:  []PortSpec{{Name: "item"}},
		Outputs: []PortSpec{{Name: "value", Types: []engine.Type{TypeList}}},
	})

	r.MustRegister(&Descriptor{
		Name: TypeFormat,
		New:  func() engine.Computer { return &Format{} },
		Inputs: []PortSpec{
			{Name: "template", Types: []engine.Type{TypeString}},
			{Name: "value"},
		},
		Outputs: []PortSpec{{Name: "value", Types: []engine.Type{TypeString}}},
	})

	r.MustRegister(&Descriptor{
		Name:    TypeIdentity,
		New:     func() engine.Computer { return &Identity{} },
		Inputs:  []PortSpec{{Name: "value"}},
		Outputs: []PortSpec{{Name: "value"}},
	})

	r.MustRegister(&Descriptor{
		Name: TypeInputPort,
		New:  func() engine.Computer { return &InputPort{} },
		Inputs: []PortSpec{
			{Name: "ExternalPipe"},
			{Name: "Default"},
		},
		Outputs: []PortSpec{{Name: "InternalPipe"}},
	})

	r.MustRegister(&Descriptor{
		Name:    TypeOutputPort,
		New:     func() engine.Computer { return &OutputPort{} },
		Inputs:  []PortSpec{{Name: "InternalPipe"}},
		Outputs: []PortSpec{{Name: "ExternalPipe"}},
	})

	r.MustRegister(&Descriptor{
		Name:   TypeTimestamp,
		New:    func() engine.Computer { return NewTimestamp(time.Now) },
		Inputs: []PortSpec{{Name: "layout", Types: []engine.Type{TypeString}}},
		Outputs: []PortSpec{
			{Name: "value", Types: []engine.Type{TypeString}},
			{Name: "unix", Types: []engine.Type{TypeInteger}},
		},
	})
}

// Calc — арифметика над двумя числами.
//
// Входы: a, b (Integer или Float), op ("+", "-", "*", "/"; по умолчанию "+").
// Выход: value (Float).
type Calc struct{}

// Compute реализует engine.Computer.
func (c *Calc) Compute(m *engine.Module) error {
	a, err := numberInput(m, "a")
	if err != nil {
		return err
	}
	b, err := numberInput(m, "b")
	if err != nil {
		return err
	}
	rawOp, err := m.ForceGetInputFromPort("op", "+")
	if err != nil {
		return err
	}
	op, _ := rawOp.(string)

	var result float64
	switch op {
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	case "/":
		if b == 0 {
			return &engine.ModuleError{Module: m, Message: "division by zero", Err: ErrDivisionByZero}
		}
		result = a / b
	default:
		return &engine.ModuleError{
			Module:  m,
			Message: fmt.Sprintf("unknown operator %q", op),
			Err:     ErrUnknownOperator,
		}
	}

	m.SetResult("value", result, TypeFloat)
	return nil
}

func numberInput(m *engine.Module, port string) (float64, error) {
	if err := m.CheckInputPort(port); err != nil {
		return 0, err
	}
	v, err := m.GetInputFromPort(port)
	if err != nil {
		return 0, err
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, engine.ModuleErrorf(m, "port %s: %v", port, err)
	}
	return f.(float64), nil
}

// Identity передаёт значение входа на выход без изменений.
type Identity struct{}

// Compute реализует engine.Computer.
func (i *Identity) Compute(m *engine.Module) error {
	if err := m.CheckInputPort("value"); err != nil {
		return err
	}
	v, err := m.GetInputFromPort("value")
	if err != nil {
		return err
	}
	m.SetResult("value", v)
	return nil
}

// Timestamp публикует текущее время. Результат никогда не кэшируется.
type Timestamp struct {
	engine.NotCacheable

	now func() time.Time
}

// NewTimestamp создаёт Timestamp с источником времени now.
func NewTimestamp(now func() time.Time) *Timestamp {
	return &Timestamp{now: now}
}

// Compute реализует engine.Computer.
func (t *Timestamp) Compute(m *engine.Module) error {
	raw, err := m.ForceGetInputFromPort("layout", time.RFC3339)
	if err != nil {
		return err
	}
	layout, ok := raw.(string)
	if !ok || layout == "" {
		layout = time.RFC3339
	}

	now := t.now().UTC()
	m.SetResult("value", now.Format(layout), TypeString)
	m.SetResult("unix", int(now.Unix()), TypeInteger)
	return nil
}
