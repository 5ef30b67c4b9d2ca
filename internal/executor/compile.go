package executor

import (
	"fmt"
	"slices"

	"github.com/shaiso/Pipeflow/internal/domain"
	"github.com/shaiso/Pipeflow/internal/engine"
)

// compiled — Pipeline, собранный из PipelineSpec.
type compiled struct {
	pipeline *engine.Pipeline

	// modules — ModuleDef.ID → модуль arena.
	modules map[string]*engine.Module

	// ids — ModuleID → ModuleDef.ID (только видимые модули).
	ids map[engine.ModuleID]string
}

// compile создаёт модули в топологическом порядке, затем соединения,
// затем скрытые модули параметров.
//
// Соединения добавляются раньше параметров, поэтому при наличии
// обоих GetInputFromPort вернёт значение соединения.
func (e *Executor) compile(spec *domain.PipelineSpec, dag *engine.DAG, sink *moduleSink) (*compiled, error) {
	p := engine.NewPipeline(e.registry)
	p.SetLogging(sink)

	c := &compiled{
		pipeline: p,
		modules:  make(map[string]*engine.Module, len(dag.Order)),
		ids:      make(map[engine.ModuleID]string, len(dag.Order)),
	}

	for _, node := range dag.Order {
		m, err := e.registry.Instantiate(p, engine.Type(node.Def.Type), node.ID)
		if err != nil {
			return nil, engine.NewValidationError(node.ID, "type", err.Error(), err)
		}
		c.modules[node.ID] = m
		c.ids[m.ID()] = node.ID
	}

	for _, conn := range spec.Connections {
		to := c.modules[conn.To]
		in, _ := e.registry.InputSpec(to.TypeName(), conn.ToPort)
		if _, err := p.Connect(c.modules[conn.From].ID(), conn.FromPort, to.ID(), conn.ToPort, in.Types...); err != nil {
			return nil, fmt.Errorf("connect %s.%s -> %s.%s: %w", conn.From, conn.FromPort, conn.To, conn.ToPort, err)
		}
	}

	for _, node := range dag.Order {
		if err := e.bindParams(c, node.Def); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// bindParams подаёт каждый параметр на порт через скрытый модуль-источник.
func (e *Executor) bindParams(c *compiled, def *domain.ModuleDef) error {
	m := c.modules[def.ID]

	ports := make([]string, 0, len(def.Params))
	for port := range def.Params {
		ports = append(ports, port)
	}
	slices.Sort(ports)

	for _, port := range ports {
		in, _ := e.registry.InputSpec(m.TypeName(), port)
		value, typ, err := e.registry.Coerce(def.Params[port], in.Types)
		if err != nil {
			return engine.NewValidationError(def.ID, "params",
				fmt.Sprintf("port %s: %v", port, err), err)
		}

		src := c.pipeline.Add(typ, "", &paramSource{value: value, typ: typ})
		if _, err := c.pipeline.Connect(src.ID(), "value", m.ID(), port, in.Types...); err != nil {
			return fmt.Errorf("bind param %s.%s: %w", def.ID, port, err)
		}
	}
	return nil
}

// attribute возвращает ID модуля, к которому относится ошибка Update.
//
// Модуль из ошибки берётся, если он видимый и ещё не выполнен. Иначе
// (ошибка без модуля или модуль-producer уже отработал) — модуль,
// на котором остановилась рекурсия.
func (c *compiled) attribute(err error, sink *moduleSink) string {
	if m := engine.FailedModule(err); m != nil && !m.IsUpToDate() {
		if id, ok := c.ids[m.ID()]; ok {
			return id
		}
	}
	if m := sink.failing(); m != nil {
		return c.ids[m.ID()]
	}
	return ""
}

// paramSource публикует значение параметра на порту value.
type paramSource struct {
	value any
	typ   engine.Type
}

func (s *paramSource) Compute(m *engine.Module) error {
	m.SetResult("value", s.value, s.typ)
	return nil
}
