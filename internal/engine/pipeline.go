package engine

import "fmt"

// Pipeline — arena модулей одного прохода выполнения.
//
// Pipeline владеет всеми модулями; connector'ы ссылаются на producer'ов
// по ModuleID. Рассчитан на однопоточное использование.
type Pipeline struct {
	modules []*Module
	checker TypeChecker
	logging LoggingSink
}

// NewPipeline создаёт пустой pipeline.
// Если checker == nil, тип подходит только при точном совпадении.
func NewPipeline(checker TypeChecker) *Pipeline {
	if checker == nil {
		checker = exactTypes{}
	}
	return &Pipeline{checker: checker}
}

// Checker возвращает коллаборатор реестра типов.
func (p *Pipeline) Checker() TypeChecker { return p.checker }

// SetLogging подключает коллаборатор логирования ко всем модулям,
// в том числе к добавленным позже.
func (p *Pipeline) SetLogging(sink LoggingSink) {
	p.logging = sink
	for _, m := range p.modules {
		m.SetLogging(sink)
	}
}

// Add добавляет модуль в arena.
func (p *Pipeline) Add(typeName Type, label string, impl Computer) *Module {
	m := newModule(p, ModuleID(len(p.modules)), typeName, label, impl)
	m.logging = p.logging
	p.modules = append(p.modules, m)
	return m
}

// Module возвращает модуль по ID или nil.
func (p *Pipeline) Module(id ModuleID) *Module {
	if id < 0 || int(id) >= len(p.modules) {
		return nil
	}
	return p.modules[id]
}

// Modules возвращает все модули в порядке добавления.
func (p *Pipeline) Modules() []*Module {
	out := make([]*Module, len(p.modules))
	copy(out, p.modules)
	return out
}

// Len возвращает количество модулей.
func (p *Pipeline) Len() int { return len(p.modules) }

// Connect соединяет выход from.fromPort со входом to.toPort.
// spec — допустимые типы входного порта (пусто — любой тип).
func (p *Pipeline) Connect(from ModuleID, fromPort string, to ModuleID, toPort string, spec ...Type) (*Connector, error) {
	if p.Module(from) == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownModule, from)
	}
	consumer := p.Module(to)
	if consumer == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownModule, to)
	}
	if from == to {
		return nil, fmt.Errorf("%s: %w", consumer, ErrSelfDependency)
	}
	c := NewConnector(from, fromPort, spec...)
	consumer.SetInputPort(toPort, c)
	return c, nil
}

// Fetch читает текущее значение выхода producer'а connector'а.
func (p *Pipeline) Fetch(c *Connector) (any, error) {
	if c.Detached() {
		return nil, ErrDetachedConnector
	}
	producer := p.Module(c.Producer)
	if producer == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownModule, c.Producer)
	}
	return producer.GetOutput(c.Port)
}

// isAdaptor сообщает, является ли producer connector'а адаптером входа.
func (p *Pipeline) isAdaptor(c *Connector) bool {
	producer := p.Module(c.Producer)
	if producer == nil {
		return false
	}
	a, ok := producer.impl.(InputAdaptor)
	return ok && a.AdaptsInput()
}

// Update обновляет модуль и всё, от чего он зависит.
func (p *Pipeline) Update(id ModuleID) error {
	m := p.Module(id)
	if m == nil {
		return fmt.Errorf("%w: %d", ErrUnknownModule, id)
	}
	return m.Update()
}

// Sinks возвращает модули, выходы которых никто не потребляет.
func (p *Pipeline) Sinks() []ModuleID {
	consumed := make(map[ModuleID]bool)
	for _, m := range p.modules {
		for _, port := range m.inputs {
			for _, c := range port.Connectors {
				consumed[c.Producer] = true
			}
		}
	}
	sinks := make([]ModuleID, 0)
	for _, m := range p.modules {
		if !consumed[m.id] {
			sinks = append(sinks, m.id)
		}
	}
	return sinks
}

// Invalidate сбрасывает флаг актуальности у всех модулей.
func (p *Pipeline) Invalidate() {
	for _, m := range p.modules {
		m.Invalidate()
	}
}

// Clear освобождает все модули и connector'ы.
func (p *Pipeline) Clear() {
	for _, m := range p.modules {
		m.Clear()
	}
	p.modules = nil
}
