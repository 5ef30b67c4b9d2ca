package engine

import (
	"errors"
	"fmt"
)

// Ошибки выполнения модулей.
var (
	// ErrMissingPort — у входного порта нет ни одного connector'а.
	ErrMissingPort = errors.New("missing value from port")

	// ErrMandatoryPortMissing — обязательный входной порт не подключён.
	ErrMandatoryPortMissing = errors.New("mandatory port is missing")

	// ErrPortNotRegistered — у выходного порта нет ни значения, ни on-demand producer'а.
	ErrPortNotRegistered = errors.New("on-demand request port not registered")

	// ErrIncompleteImplementation — модуль не реализовал обязательный метод.
	ErrIncompleteImplementation = errors.New("module has incomplete implementation")

	// ErrModuleRuntime — compute() модуля завершился ошибкой.
	ErrModuleRuntime = errors.New("module runtime error")

	// ErrDetachedConnector — connector уже освобождён через Clear().
	ErrDetachedConnector = errors.New("connector is detached")

	// ErrUnknownModule — ссылка на модуль, которого нет в pipeline.
	ErrUnknownModule = errors.New("unknown module")
)

// Ошибки валидации PipelineSpec.
var (
	// ErrEmptyModules — pipeline не содержит модулей.
	ErrEmptyModules = errors.New("pipeline spec has no modules")

	// ErrEmptyModuleID — модуль не имеет ID.
	ErrEmptyModuleID = errors.New("module has empty ID")

	// ErrDuplicateModuleID — несколько модулей с одинаковым ID.
	ErrDuplicateModuleID = errors.New("duplicate module ID")

	// ErrUnknownModuleType — тип модуля не зарегистрирован.
	ErrUnknownModuleType = errors.New("unknown module type")

	// ErrAbstractModuleType — тип модуля абстрактный и не может быть создан.
	ErrAbstractModuleType = errors.New("abstract module type")

	// ErrUnknownPort — соединение ссылается на несуществующий порт.
	ErrUnknownPort = errors.New("unknown port")

	// ErrMissingDependency — соединение ссылается на несуществующий модуль.
	ErrMissingDependency = errors.New("connection references unknown module")

	// ErrCyclicDependency — обнаружен цикл в графе модулей.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency — модуль соединён сам с собой.
	ErrSelfDependency = errors.New("module is connected to itself")
)

// PortError — ошибка обращения к порту модуля.
//
// Err — один из ErrMissingPort, ErrMandatoryPortMissing, ErrPortNotRegistered.
type PortError struct {
	Module *Module
	Port   string
	Err    error
}

// Error реализует интерфейс error.
func (e *PortError) Error() string {
	switch {
	case errors.Is(e.Err, ErrMandatoryPortMissing):
		return fmt.Sprintf("%s: '%s' is a mandatory port", e.Module, e.Port)
	case errors.Is(e.Err, ErrPortNotRegistered):
		return fmt.Sprintf("%s: on-demand request port %s not present in table", e.Module, e.Port)
	default:
		return fmt.Sprintf("%s: missing value from port %s", e.Module, e.Port)
	}
}

// Unwrap возвращает базовую ошибку.
func (e *PortError) Unwrap() error {
	return e.Err
}

// IncompleteImplementationError — модуль оставил абстрактный метод без реализации.
type IncompleteImplementationError struct {
	TypeName Type
}

func (e *IncompleteImplementationError) Error() string {
	return fmt.Sprintf("module %s has incomplete implementation", e.TypeName)
}

func (e *IncompleteImplementationError) Unwrap() error {
	return ErrIncompleteImplementation
}

// ModuleError — ошибка выполнения compute() конкретного модуля.
//
// Движок не разбирает Message, только запоминает, какой модуль её вернул.
type ModuleError struct {
	Module  *Module
	Message string
	Err     error // исходная ошибка, если была
}

// Error реализует интерфейс error.
func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Module, e.Message)
}

// Unwrap возвращает исходную ошибку.
func (e *ModuleError) Unwrap() error {
	return e.Err
}

// Is позволяет сравнивать с ErrModuleRuntime через errors.Is.
func (e *ModuleError) Is(target error) bool {
	return target == ErrModuleRuntime
}

// NewModuleError создаёт ошибку выполнения модуля.
func NewModuleError(m *Module, message string) *ModuleError {
	return &ModuleError{Module: m, Message: message}
}

// ModuleErrorf создаёт ошибку выполнения модуля с форматированием.
func ModuleErrorf(m *Module, format string, args ...any) *ModuleError {
	return &ModuleError{Module: m, Message: fmt.Sprintf(format, args...)}
}

// NewIncompleteImplementation создаёт ошибку незавершённой реализации.
func NewIncompleteImplementation(typeName Type) *IncompleteImplementationError {
	return &IncompleteImplementationError{TypeName: typeName}
}

// FailedModule возвращает модуль, к которому относится ошибка выполнения.
// Возвращает nil, если ошибка не из таксономии движка.
func FailedModule(err error) *Module {
	var portErr *PortError
	if errors.As(err, &portErr) {
		return portErr.Module
	}
	var modErr *ModuleError
	if errors.As(err, &modErr) {
		return modErr.Module
	}
	var cycleErr *CycleError
	if errors.As(err, &cycleErr) {
		return cycleErr.Module
	}
	return nil
}

// CycleError — повторный вход в модуль, который ещё обновляется.
type CycleError struct {
	Module *Module
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: re-entered while updating", e.Module)
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// isExecutionError проверяет, что ошибка уже относится к таксономии движка.
func isExecutionError(err error) bool {
	var portErr *PortError
	var incErr *IncompleteImplementationError
	var modErr *ModuleError
	var cycleErr *CycleError
	return errors.As(err, &portErr) ||
		errors.As(err, &incErr) ||
		errors.As(err, &modErr) ||
		errors.As(err, &cycleErr)
}

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	ModuleID string // ID модуля, где произошла ошибка
	Field    string // поле, вызвавшее ошибку
	Message  string // описание ошибки
	Err      error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.ModuleID != "" {
		return "module " + e.ModuleID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(moduleID, field, message string, err error) *ValidationError {
	return &ValidationError{
		ModuleID: moduleID,
		Field:    field,
		Message:  message,
		Err:      err,
	}
}
