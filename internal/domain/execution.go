package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus — итог выполнения pipeline.
type ExecutionStatus string

const (
	// ExecutionStatusSucceeded — все sink модули выполнены.
	ExecutionStatusSucceeded ExecutionStatus = "SUCCEEDED"

	// ExecutionStatusFailed — хотя бы один модуль завершился ошибкой.
	ExecutionStatusFailed ExecutionStatus = "FAILED"
)

// ModuleStatus — статус модуля после прохода.
//
//	SUCCEEDED — compute выполнен
//	CACHED    — результат взят из кэша
//	FAILED    — модуль вернул ошибку
//	NOT_EXECUTED — зависит от упавшего модуля
type ModuleStatus string

const (
	ModuleStatusSucceeded   ModuleStatus = "SUCCEEDED"
	ModuleStatusCached      ModuleStatus = "CACHED"
	ModuleStatusFailed      ModuleStatus = "FAILED"
	ModuleStatusNotExecuted ModuleStatus = "NOT_EXECUTED"
)

// IsDone возвращает true, если у модуля есть готовый результат.
func (s ModuleStatus) IsDone() bool {
	return s == ModuleStatusSucceeded || s == ModuleStatusCached
}

// Execution — один проход pipeline.
type Execution struct {
	// ID — уникальный идентификатор прохода.
	ID uuid.UUID `json:"id"`

	// Pipeline — имя выполненного pipeline.
	Pipeline string `json:"pipeline,omitempty"`

	// Status — итог прохода.
	Status ExecutionStatus `json:"status"`

	// Modules — результаты модулей (ModuleDef.ID → результат).
	Modules map[string]*ModuleExecution `json:"modules"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ModuleExecution — результат одного модуля в проходе.
type ModuleExecution struct {
	ModuleID string       `json:"module_id"`
	Type     string       `json:"type"`
	Status   ModuleStatus `json:"status"`

	// Outputs — выходы модуля (без "self").
	Outputs map[string]any `json:"outputs,omitempty"`

	// Error — текст ошибки при FAILED.
	Error string `json:"error,omitempty"`

	// Annotations — аннотации, оставленные модулем через Annotate.
	Annotations map[string]any `json:"annotations,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Duration возвращает продолжительность прохода.
func (e *Execution) Duration() time.Duration {
	if e.FinishedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Failed возвращает ID упавших модулей.
func (e *Execution) Failed() []string {
	var ids []string
	for id, m := range e.Modules {
		if m.Status == ModuleStatusFailed {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
