package engine

import (
	"errors"
	"fmt"
)

// ModuleID — стабильный индекс модуля в arena Pipeline.
type ModuleID int

// SelfPort — выходной порт, на котором каждый модуль публикует себя.
const SelfPort = "self"

// Computer — логика конкретного типа модуля.
//
// Compute читает входы только через GetInputFromPort и его варианты,
// а публикует выходы только через SetResult и EnableOutputPort.
type Computer interface {
	Compute(m *Module) error
}

// ComputeFunc позволяет использовать функцию как Computer.
type ComputeFunc func(m *Module) error

// Compute реализует Computer.
func (f ComputeFunc) Compute(m *Module) error { return f(m) }

// Cacheable — Computer, который сам решает, можно ли переиспользовать результат.
type Cacheable interface {
	IsCacheable() bool
}

// NotCacheable встраивается в Computer с побочными эффектами.
// Такой модуль и всё, что от него зависит, никогда не переиспользуются.
type NotCacheable struct{}

// IsCacheable всегда возвращает false.
func (NotCacheable) IsCacheable() bool { return false }

// InputAdaptor — producer-адаптер входа подпайплайна.
// GetInputFromPort предпочитает connector'ы от таких модулей.
type InputAdaptor interface {
	AdaptsInput() bool
}

// Abstract встраивается в Computer, который обязан переопределить Compute.
type Abstract struct{}

// Compute возвращает IncompleteImplementationError.
func (Abstract) Compute(m *Module) error {
	return NewIncompleteImplementation(m.TypeName())
}

// RequestFunc — on-demand producer выходного порта.
type RequestFunc func() (any, error)

// LoggingSink — необязательный коллаборатор логирования выполнения.
type LoggingSink interface {
	BeginUpdate(m *Module)
	BeginCompute(m *Module)
	EndUpdate(m *Module)
	SignalSuccess(m *Module)
	Annotate(m *Module, data map[string]any)
}

// DetachObserver — LoggingSink, которому интересны отключённые connector'ы.
type DetachObserver interface {
	ConnectorDetached(m *Module, port string, c *Connector)
}

// Module — узел вычислений с входными и выходными портами.
type Module struct {
	id       ModuleID
	typeName Type
	label    string
	pipeline *Pipeline
	impl     Computer

	inputs      map[string]*InputPort
	inputOrder  []string
	outputs     map[string]any
	outputTypes map[string]Type
	requests    map[string]RequestFunc

	upToDate bool
	updating bool
	logging  LoggingSink
}

func newModule(p *Pipeline, id ModuleID, typeName Type, label string, impl Computer) *Module {
	m := &Module{
		id:       id,
		typeName: typeName,
		label:    label,
		pipeline: p,
		impl:     impl,
	}
	m.reset()
	return m
}

func (m *Module) reset() {
	m.inputs = make(map[string]*InputPort)
	m.inputOrder = nil
	m.outputs = make(map[string]any)
	m.outputTypes = make(map[string]Type)
	m.requests = make(map[string]RequestFunc)
	m.SetResult(SelfPort, m)
}

// ID возвращает индекс модуля в arena.
func (m *Module) ID() ModuleID { return m.id }

// TypeName возвращает имя типа модуля.
func (m *Module) TypeName() Type { return m.typeName }

// Label возвращает пользовательский идентификатор модуля.
func (m *Module) Label() string { return m.label }

// Computer возвращает логику модуля.
func (m *Module) Computer() Computer { return m.impl }

// PortType реализует Typed: значение порта "self" имеет тип модуля.
func (m *Module) PortType() Type { return m.typeName }

func (m *Module) String() string {
	if m == nil {
		return "<<nil module>>"
	}
	if m.label != "" {
		return fmt.Sprintf("<<%s %s>>", m.typeName, m.label)
	}
	return fmt.Sprintf("<<%s #%d>>", m.typeName, m.id)
}

// SetLogging подключает коллаборатор логирования (nil — отключить).
func (m *Module) SetLogging(sink LoggingSink) { m.logging = sink }

// IsUpToDate сообщает, выполнен ли модуль в текущем проходе.
func (m *Module) IsUpToDate() bool { return m.upToDate }

// MarkUpToDate помечает модуль выполненным без вызова compute.
// Используется внешним слоем кэша при переиспользовании результата.
func (m *Module) MarkUpToDate() { m.upToDate = true }

// Invalidate сбрасывает флаг актуальности перед новым проходом.
func (m *Module) Invalidate() { m.upToDate = false }

// IsCacheable сообщает, можно ли переиспользовать результат модуля.
func (m *Module) IsCacheable() bool {
	if c, ok := m.impl.(Cacheable); ok {
		return c.IsCacheable()
	}
	return true
}

// --- Входные порты ---

// SetInputPort добавляет connector к входному порту.
func (m *Module) SetInputPort(name string, c *Connector) {
	port, ok := m.inputs[name]
	if !ok {
		port = &InputPort{Name: name}
		m.inputs[name] = port
		m.inputOrder = append(m.inputOrder, name)
	}
	port.Connectors = append(port.Connectors, c)
}

// RemoveInputConnector отключает connector от входного порта.
// Опустевший порт удаляется целиком.
func (m *Module) RemoveInputConnector(name string, c *Connector) {
	port, ok := m.inputs[name]
	if !ok {
		return
	}
	if port.remove(c) {
		delete(m.inputs, name)
		for i, n := range m.inputOrder {
			if n == name {
				m.inputOrder = append(m.inputOrder[:i], m.inputOrder[i+1:]...)
				break
			}
		}
	}
}

// InputPorts возвращает имена подключённых входных портов в порядке добавления.
func (m *Module) InputPorts() []string {
	out := make([]string, len(m.inputOrder))
	copy(out, m.inputOrder)
	return out
}

// InputPortState возвращает состояние входного порта.
func (m *Module) InputPortState(name string) PortState {
	return m.inputs[name].State()
}

// Connectors возвращает connector'ы входного порта.
func (m *Module) Connectors(name string) []*Connector {
	port, ok := m.inputs[name]
	if !ok {
		return nil
	}
	out := make([]*Connector, len(port.Connectors))
	copy(out, port.Connectors)
	return out
}

// HasInputFromPort сообщает, есть ли у порта хотя бы один connector.
func (m *Module) HasInputFromPort(name string) bool {
	return m.inputs[name].State() != Unconnected
}

// CheckInputPort требует, чтобы порт был подключён.
func (m *Module) CheckInputPort(name string) error {
	if !m.HasInputFromPort(name) {
		return &PortError{Module: m, Port: name, Err: ErrMandatoryPortMissing}
	}
	return nil
}

// GetInputFromPort возвращает значение порта.
//
// Если среди connector'ов есть адаптер входа подпайплайна, берётся он,
// иначе — первый connector.
func (m *Module) GetInputFromPort(name string) (any, error) {
	port, ok := m.inputs[name]
	if !ok || len(port.Connectors) == 0 {
		return nil, &PortError{Module: m, Port: name, Err: ErrMissingPort}
	}
	for _, c := range port.Connectors {
		if m.pipeline.isAdaptor(c) {
			return m.pipeline.Fetch(c)
		}
	}
	return m.pipeline.Fetch(port.Connectors[0])
}

// ForceGetInputFromPort возвращает def вместо ошибки, если порт не подключён.
func (m *Module) ForceGetInputFromPort(name string, def any) (any, error) {
	if !m.HasInputFromPort(name) {
		return def, nil
	}
	return m.GetInputFromPort(name)
}

// GetInputListFromPort возвращает значения всех connector'ов порта.
//
// Если есть адаптеры входа, возвращаются только их значения.
func (m *Module) GetInputListFromPort(name string) ([]any, error) {
	port, ok := m.inputs[name]
	if !ok || len(port.Connectors) == 0 {
		return nil, &PortError{Module: m, Port: name, Err: ErrMissingPort}
	}

	selected := make([]*Connector, 0, len(port.Connectors))
	for _, c := range port.Connectors {
		if m.pipeline.isAdaptor(c) {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		selected = port.Connectors
	}

	values := make([]any, 0, len(selected))
	for _, c := range selected {
		v, err := m.pipeline.Fetch(c)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// ForceGetInputListFromPort возвращает пустой список, если порт не подключён.
func (m *Module) ForceGetInputListFromPort(name string) ([]any, error) {
	if !m.HasInputFromPort(name) {
		return []any{}, nil
	}
	return m.GetInputListFromPort(name)
}

// --- Выходные порты ---

// SetResult сохраняет значение выходного порта.
// Без declared тип выводится через TypeChecker pipeline.
func (m *Module) SetResult(port string, value any, declared ...Type) {
	m.outputs[port] = value
	if len(declared) > 0 && declared[0] != "" {
		m.outputTypes[port] = declared[0]
		return
	}
	m.outputTypes[port] = m.pipeline.checker.TypeOf(value)
}

// EnableOutputPort объявляет выходной порт без значения.
// Существующее значение не перезаписывается, иначе ломается кэширование.
func (m *Module) EnableOutputPort(port string) {
	if _, ok := m.outputs[port]; !ok {
		m.SetResult(port, nil)
	}
}

// AddRequestPort регистрирует on-demand producer для выходного порта.
func (m *Module) AddRequestPort(port string, fn RequestFunc) {
	m.requests[port] = fn
}

// GetOutput возвращает значение выходного порта.
//
// Порт с nil значением (SetResult(port, nil) или EnableOutputPort)
// отдаёт nil, если у него нет on-demand producer'а; с producer'ом
// значение запрашивается у него. Для неизвестного порта без
// producer'а — ErrPortNotRegistered.
func (m *Module) GetOutput(port string) (any, error) {
	v, ok := m.outputs[port]
	if ok && v != nil {
		return v, nil
	}
	if _, lazy := m.requests[port]; lazy || !ok {
		return m.requestOutputFromPort(port)
	}
	return nil, nil
}

func (m *Module) requestOutputFromPort(port string) (any, error) {
	fn, ok := m.requests[port]
	if !ok {
		return nil, &PortError{Module: m, Port: port, Err: ErrPortNotRegistered}
	}
	v, err := fn()
	if err != nil {
		if isExecutionError(err) {
			return nil, err
		}
		return nil, &ModuleError{Module: m, Message: err.Error(), Err: err}
	}
	return v, nil
}

// GetOutputType возвращает тип выходного порта.
// lazy=true означает, что значение появится через on-demand producer.
func (m *Module) GetOutputType(port string) (t Type, lazy bool) {
	if v, ok := m.outputs[port]; ok && v != nil {
		return m.outputTypes[port], false
	}
	if _, ok := m.requests[port]; ok {
		return "", true
	}
	return TypeNone, false
}

// Outputs возвращает снимок выходных портов (кроме "self").
func (m *Module) Outputs() map[string]Output {
	out := make(map[string]Output, len(m.outputs))
	for port, v := range m.outputs {
		if port == SelfPort {
			continue
		}
		out[port] = Output{Value: v, Type: m.outputTypes[port]}
	}
	return out
}

// Annotate передаёт аннотацию коллаборатору логирования.
func (m *Module) Annotate(data map[string]any) {
	if m.logging != nil {
		m.logging.Annotate(m, data)
	}
}

// --- Протокол обновления ---

// Update выполняет модуль, если он ещё не актуален в текущем проходе.
//
// Сначала обновляются все upstream модули, затем вызывается compute.
// Ошибки не перехватываются и возвращаются вызывающему.
func (m *Module) Update() error {
	if m.upToDate {
		return nil
	}
	if m.updating {
		return &CycleError{Module: m}
	}
	m.updating = true
	defer func() { m.updating = false }()

	if m.logging != nil {
		m.logging.BeginUpdate(m)
	}
	if err := m.UpdateUpstream(); err != nil {
		return err
	}
	if m.logging != nil {
		m.logging.BeginCompute(m)
	}
	if err := m.compute(); err != nil {
		return err
	}
	m.upToDate = true
	if m.logging != nil {
		m.logging.EndUpdate(m)
		m.logging.SignalSuccess(m)
	}
	return nil
}

// UpdateUpstream обновляет всех producer'ов и перепроверяет типы connector'ов.
//
// Connector, тип выхода которого не подходит ни под один допустимый тип
// порта, молча отключается: producer считается "ничего не выдавшим".
func (m *Module) UpdateUpstream() error {
	for _, name := range m.inputOrder {
		for _, c := range m.inputs[name].Connectors {
			producer := m.pipeline.Module(c.Producer)
			if producer == nil {
				return fmt.Errorf("%s: port %s: %w: %d", m, name, ErrUnknownModule, c.Producer)
			}
			if err := producer.Update(); err != nil {
				return err
			}
		}
	}

	for _, name := range m.InputPorts() {
		for _, c := range m.Connectors(name) {
			producer := m.pipeline.Module(c.Producer)
			t, lazy := producer.GetOutputType(c.Port)
			c.Type = t
			if lazy || c.accepts(m.pipeline.checker, t) {
				continue
			}
			m.RemoveInputConnector(name, c)
			if obs, ok := m.logging.(DetachObserver); ok {
				obs.ConnectorDetached(m, name, c)
			}
		}
	}
	return nil
}

func (m *Module) compute() error {
	if m.impl == nil {
		return nil
	}
	err := m.impl.Compute(m)
	if err == nil || isExecutionError(err) {
		return err
	}
	if errors.Is(err, ErrCyclicDependency) {
		return err
	}
	return &ModuleError{Module: m, Message: err.Error(), Err: err}
}

// Clear освобождает все connector'ы и сбрасывает таблицы портов.
func (m *Module) Clear() {
	for _, port := range m.inputs {
		for _, c := range port.Connectors {
			c.Clear()
		}
	}
	m.reset()
	m.upToDate = false
	m.logging = nil
}
