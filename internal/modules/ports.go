package modules

import (
	"fmt"

	"github.com/shaiso/Pipeflow/internal/engine"
)

// InputPort — адаптер входа подпайплайна.
//
// Значение InternalPipe выдаётся по запросу: внешнее значение ExternalPipe,
// если порт подключён, иначе Default. Потребители предпочитают connector'ы
// от InputPort остальным connector'ам того же порта.
type InputPort struct{}

// AdaptsInput реализует engine.InputAdaptor.
func (p *InputPort) AdaptsInput() bool { return true }

// Compute реализует engine.Computer.
func (p *InputPort) Compute(m *engine.Module) error {
	m.AddRequestPort("InternalPipe", func() (any, error) {
		if m.HasInputFromPort("ExternalPipe") {
			return m.GetInputFromPort("ExternalPipe")
		}
		v, err := m.ForceGetInputFromPort("Default", nil)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoValue, m)
		}
		return v, nil
	})
	return nil
}

// OutputPort выводит значение подпайплайна наружу через ExternalPipe.
type OutputPort struct{}

// Compute реализует engine.Computer.
func (p *OutputPort) Compute(m *engine.Module) error {
	if err := m.CheckInputPort("InternalPipe"); err != nil {
		return err
	}
	v, err := m.GetInputFromPort("InternalPipe")
	if err != nil {
		return err
	}
	m.SetResult("ExternalPipe", v)
	return nil
}
