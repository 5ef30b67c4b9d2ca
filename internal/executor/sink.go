package executor

import (
	"log/slog"
	"maps"
	"time"

	"github.com/shaiso/Pipeflow/internal/engine"
	"github.com/shaiso/Pipeflow/internal/telemetry"
)

// moduleSink — engine.LoggingSink одного прохода.
//
// Пишет события модулей в slog и Prometheus, собирает длительности
// и аннотации. Скрытые модули параметров (без label) пропускаются.
//
// stack — модули, для которых начат, но не завершён Update. После
// ошибки верхний элемент — модуль, на котором рекурсия остановилась.
type moduleSink struct {
	logger *slog.Logger

	stack       []*engine.Module
	started     map[engine.ModuleID]time.Time
	durations   map[engine.ModuleID]time.Duration
	computed    map[engine.ModuleID]bool
	annotations map[engine.ModuleID]map[string]any
	detached    int
}

func newModuleSink(logger *slog.Logger) *moduleSink {
	return &moduleSink{
		logger:      logger,
		started:     make(map[engine.ModuleID]time.Time),
		durations:   make(map[engine.ModuleID]time.Duration),
		computed:    make(map[engine.ModuleID]bool),
		annotations: make(map[engine.ModuleID]map[string]any),
	}
}

func hidden(m *engine.Module) bool { return m.Label() == "" }

func (s *moduleSink) moduleLogger(m *engine.Module) *slog.Logger {
	return telemetry.WithModuleID(s.logger, m.Label(), string(m.TypeName()))
}

// BeginUpdate реализует engine.LoggingSink.
func (s *moduleSink) BeginUpdate(m *engine.Module) {
	if hidden(m) {
		return
	}
	s.stack = append(s.stack, m)
	s.started[m.ID()] = time.Now()
	s.moduleLogger(m).Debug("module update started")
}

// BeginCompute реализует engine.LoggingSink.
func (s *moduleSink) BeginCompute(m *engine.Module) {
	if hidden(m) {
		return
	}
	s.computed[m.ID()] = true
	telemetry.ModuleComputes.WithLabelValues(string(m.TypeName())).Inc()
	s.moduleLogger(m).Debug("module compute started")
}

// EndUpdate реализует engine.LoggingSink.
func (s *moduleSink) EndUpdate(m *engine.Module) {
	if hidden(m) {
		return
	}
	if n := len(s.stack); n > 0 && s.stack[n-1] == m {
		s.stack = s.stack[:n-1]
	}
	d := time.Since(s.started[m.ID()])
	s.durations[m.ID()] = d
	telemetry.ModuleDuration.WithLabelValues(string(m.TypeName())).Observe(d.Seconds())
}

// SignalSuccess реализует engine.LoggingSink.
func (s *moduleSink) SignalSuccess(m *engine.Module) {
	if hidden(m) {
		return
	}
	s.moduleLogger(m).Debug("module succeeded", "duration_ms", s.durations[m.ID()].Milliseconds())
}

// Annotate реализует engine.LoggingSink.
func (s *moduleSink) Annotate(m *engine.Module, data map[string]any) {
	if hidden(m) {
		return
	}
	a, ok := s.annotations[m.ID()]
	if !ok {
		a = make(map[string]any, len(data))
		s.annotations[m.ID()] = a
	}
	maps.Copy(a, data)
	s.moduleLogger(m).Debug("module annotated", "annotations", data)
}

// ConnectorDetached реализует engine.DetachObserver.
func (s *moduleSink) ConnectorDetached(m *engine.Module, port string, c *engine.Connector) {
	s.detached++
	telemetry.DetachedConnectors.Inc()
	s.logger.Debug("connector detached",
		"module_id", m.Label(),
		"port", port,
		"producer_port", c.Port,
		"producer_type", string(c.Type),
	)
}

// failing возвращает модуль, на котором остановился последний Update.
func (s *moduleSink) failing() *engine.Module {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// resetStack очищает стек после обработки ошибки.
func (s *moduleSink) resetStack() {
	s.stack = s.stack[:0]
}
