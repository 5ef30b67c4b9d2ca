package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Pipeflow/internal/domain"
	"github.com/shaiso/Pipeflow/internal/engine"
	"github.com/shaiso/Pipeflow/internal/modules"
	"github.com/shaiso/Pipeflow/internal/telemetry"
)

// Publisher получает события о завершённых проходах.
// Реализуется mq.Publisher.
type Publisher interface {
	PublishPipelineExecuted(ctx context.Context, exec *domain.Execution) error
}

// Executor компилирует PipelineSpec и выполняет его.
//
// Executor — интерпретатор поверх engine: строит Pipeline из модулей
// реестра, обновляет все sink модули и собирает результат каждого
// модуля. Один Executor можно использовать для нескольких проходов;
// кэш результатов общий между ними.
type Executor struct {
	registry  *modules.Registry
	cache     Cache
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Config — конфигурация Executor.
type Config struct {
	// Registry — реестр типов модулей (default: modules.DefaultRegistry()).
	Registry *modules.Registry

	// Cache — кэш результатов. nil — без кэширования.
	Cache Cache

	// Publisher — получатель событий pipeline.executed. nil — без событий.
	Publisher Publisher

	Logger *slog.Logger
}

// New создаёт новый Executor.
func New(cfg Config) *Executor {
	registry := cfg.Registry
	if registry == nil {
		registry = modules.DefaultRegistry()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		registry:  registry,
		cache:     cfg.Cache,
		publisher: cfg.Publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Registry возвращает реестр типов модулей.
func (e *Executor) Registry() *modules.Registry { return e.registry }

// Execute выполняет pipeline.
//
// Ошибка валидации или компиляции возвращается без Execution.
// Ошибки модулей не прерывают проход: они записываются в результат
// модуля, зависящие от него модули получают NOT_EXECUTED, остальные
// sink модули выполняются дальше.
func (e *Executor) Execute(ctx context.Context, spec *domain.PipelineSpec) (*domain.Execution, error) {
	if err := engine.Validate(spec, e.registry); err != nil {
		return nil, err
	}
	dag, err := engine.BuildDAG(spec)
	if err != nil {
		return nil, err
	}

	exec := &domain.Execution{
		ID:        uuid.New(),
		Pipeline:  spec.Name,
		Modules:   make(map[string]*domain.ModuleExecution, len(spec.Modules)),
		StartedAt: e.now().UTC(),
	}
	logger := telemetry.WithExecutionID(telemetry.WithPipeline(e.logger, spec.Name), exec.ID.String())
	logger.Info("pipeline execution started", "modules", len(spec.Modules))

	sink := newModuleSink(logger)
	c, err := e.compile(spec, dag, sink)
	if err != nil {
		return nil, err
	}
	defer c.pipeline.Clear()

	sigs, tainted, err := signatures(spec, dag, c.modules)
	if err != nil {
		return nil, err
	}
	cached := e.restore(dag, c, sigs, tainted)

	failed := make(map[string]error)
	// blocked — упавшие модули и всё, что от них зависит: за проход
	// модуль вычисляется не больше одного раза, даже если упал.
	blocked := make(map[string]bool)
	var ctxErr error
	for _, node := range dag.SinkNodes {
		if ctxErr = ctx.Err(); ctxErr != nil {
			logger.Warn("pipeline execution cancelled", "error", ctxErr)
			break
		}
		if blocked[node.ID] {
			logger.Debug("sink skipped after upstream failure", "module_id", node.ID)
			continue
		}
		m := c.modules[node.ID]
		if err := m.Update(); err != nil {
			id := c.attribute(err, sink)
			if id == "" {
				id = node.ID
			}
			if _, seen := failed[id]; !seen {
				failed[id] = err
				telemetry.ModuleFailures.WithLabelValues(spec.Module(id).Type).Inc()
				logger.Error("module failed", "module_id", id, "error", err)
			}
			blocked[id] = true
			for _, dep := range dag.Downstream(id) {
				blocked[dep.ID] = true
			}
		}
		sink.resetStack()
	}

	for _, def := range spec.Modules {
		exec.Modules[def.ID] = e.record(def, c.modules[def.ID], sink, failed, cached)
	}
	e.store(dag, c, sigs, tainted, exec)

	exec.FinishedAt = e.now().UTC()
	exec.Status = domain.ExecutionStatusSucceeded
	if len(failed) > 0 || ctxErr != nil {
		exec.Status = domain.ExecutionStatusFailed
	}
	telemetry.PipelineExecutions.WithLabelValues(string(exec.Status)).Inc()
	logger.Info("pipeline execution finished",
		"status", exec.Status,
		"failed", len(failed),
		"cached", len(cached),
		"detached_connectors", sink.detached,
		"duration_ms", exec.Duration().Milliseconds(),
	)

	if e.publisher != nil {
		if err := e.publisher.PublishPipelineExecuted(ctx, exec); err != nil {
			logger.Warn("failed to publish pipeline.executed", "error", err)
		}
	}

	if ctxErr != nil {
		return exec, fmt.Errorf("execute %s: %w", spec.Name, ctxErr)
	}
	return exec, nil
}

// restore подставляет результаты из кэша. Возвращает ID восстановленных модулей.
func (e *Executor) restore(dag *engine.DAG, c *compiled, sigs map[string]uint64, tainted map[string]bool) map[string]bool {
	cached := make(map[string]bool)
	if e.cache == nil {
		return cached
	}
	for _, node := range dag.Order {
		m := c.modules[node.ID]
		if tainted[node.ID] || isAdaptor(m) {
			continue
		}
		outputs, ok := e.cache.Get(sigs[node.ID])
		if !ok {
			telemetry.CacheMisses.Inc()
			continue
		}
		for port, out := range outputs {
			m.SetResult(port, out.Value, out.Type)
		}
		m.MarkUpToDate()
		cached[node.ID] = true
		telemetry.CacheHits.Inc()
	}
	return cached
}

// store сохраняет в кэш результаты успешно вычисленных модулей.
func (e *Executor) store(dag *engine.DAG, c *compiled, sigs map[string]uint64, tainted map[string]bool, exec *domain.Execution) {
	if e.cache == nil {
		return
	}
	for _, node := range dag.Order {
		m := c.modules[node.ID]
		if tainted[node.ID] || isAdaptor(m) || exec.Modules[node.ID].Status != domain.ModuleStatusSucceeded {
			continue
		}
		e.cache.Put(sigs[node.ID], m.Outputs())
	}
}

func (e *Executor) record(def domain.ModuleDef, m *engine.Module, sink *moduleSink, failed map[string]error, cached map[string]bool) *domain.ModuleExecution {
	result := &domain.ModuleExecution{
		ModuleID:    def.ID,
		Type:        def.Type,
		Annotations: sink.annotations[m.ID()],
		Duration:    sink.durations[m.ID()],
	}

	switch {
	case failed[def.ID] != nil:
		result.Status = domain.ModuleStatusFailed
		result.Error = failed[def.ID].Error()
	case cached[def.ID]:
		result.Status = domain.ModuleStatusCached
		result.Outputs = outputValues(m)
	case m.IsUpToDate():
		result.Status = domain.ModuleStatusSucceeded
		result.Outputs = outputValues(m)
	default:
		result.Status = domain.ModuleStatusNotExecuted
	}
	return result
}

func outputValues(m *engine.Module) map[string]any {
	outputs := m.Outputs()
	if len(outputs) == 0 {
		return nil
	}
	values := make(map[string]any, len(outputs))
	for port, out := range outputs {
		values[port] = out.Value
	}
	return values
}

func isAdaptor(m *engine.Module) bool {
	a, ok := m.Computer().(engine.InputAdaptor)
	return ok && a.AdaptsInput()
}
