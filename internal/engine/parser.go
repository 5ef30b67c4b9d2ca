package engine

import (
	"encoding/json"
	"fmt"

	"github.com/shaiso/Pipeflow/internal/domain"
)

// Catalog — справочник типов модулей, по которому валидируется PipelineSpec.
type Catalog interface {
	// HasType сообщает, зарегистрирован ли тип.
	HasType(typeName string) bool

	// IsAbstract сообщает, что тип нельзя создать напрямую.
	IsAbstract(typeName string) bool

	// HasInput сообщает, есть ли у типа входной порт.
	HasInput(typeName, port string) bool

	// HasOutput сообщает, есть ли у типа выходной порт.
	HasOutput(typeName, port string) bool
}

// ParsePipelineSpec разбирает PipelineSpec из JSON и валидирует структуру.
func ParsePipelineSpec(data []byte, catalog Catalog) (*domain.PipelineSpec, error) {
	var spec domain.PipelineSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse pipeline spec: %w", err)
	}
	if err := Validate(&spec, catalog); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate выполняет полную валидацию PipelineSpec.
//
// Проверяет:
// - Наличие модулей
// - Уникальность ID модулей
// - Известность и конкретность типов
// - Существование портов в параметрах и соединениях
// - Отсутствие циклов (делегируется DAG)
func Validate(spec *domain.PipelineSpec, catalog Catalog) error {
	if spec == nil || len(spec.Modules) == 0 {
		return ErrEmptyModules
	}

	moduleIDs := make(map[string]bool)
	for i := range spec.Modules {
		if err := ValidateModule(&spec.Modules[i], moduleIDs, catalog); err != nil {
			return err
		}
	}

	for _, conn := range spec.Connections {
		if err := validateConnection(spec, conn, catalog); err != nil {
			return err
		}
	}

	if _, err := BuildDAG(spec); err != nil {
		return err
	}
	return nil
}

// ValidateModule валидирует один модуль.
// moduleIDs — уже встреченные ID (для проверки уникальности).
func ValidateModule(def *domain.ModuleDef, moduleIDs map[string]bool, catalog Catalog) error {
	if def.ID == "" {
		return NewValidationError("", "id", "module has empty ID", ErrEmptyModuleID)
	}
	if moduleIDs[def.ID] {
		return NewValidationError(def.ID, "id",
			fmt.Sprintf("duplicate module ID: %s", def.ID), ErrDuplicateModuleID)
	}
	moduleIDs[def.ID] = true

	if catalog == nil {
		return nil
	}

	if def.Type == "" || !catalog.HasType(def.Type) {
		return NewValidationError(def.ID, "type",
			fmt.Sprintf("unknown module type: %q", def.Type), ErrUnknownModuleType)
	}
	if catalog.IsAbstract(def.Type) {
		return NewValidationError(def.ID, "type",
			fmt.Sprintf("module type %s is abstract", def.Type), ErrAbstractModuleType)
	}

	for port := range def.Params {
		if !catalog.HasInput(def.Type, port) {
			return NewValidationError(def.ID, "params",
				fmt.Sprintf("%s has no input port %s", def.Type, port), ErrUnknownPort)
		}
	}
	return nil
}

// validateConnection проверяет, что соединение ссылается на существующие порты.
func validateConnection(spec *domain.PipelineSpec, conn domain.ConnectionDef, catalog Catalog) error {
	from := spec.Module(conn.From)
	if from == nil {
		return NewValidationError(conn.To, "connections",
			fmt.Sprintf("connected to unknown module: %s", conn.From), ErrMissingDependency)
	}
	to := spec.Module(conn.To)
	if to == nil {
		return NewValidationError(conn.From, "connections",
			fmt.Sprintf("connected to unknown module: %s", conn.To), ErrMissingDependency)
	}
	if conn.From == conn.To {
		return NewValidationError(conn.To, "connections",
			"module is connected to itself", ErrSelfDependency)
	}

	if catalog == nil {
		return nil
	}
	if !catalog.HasOutput(from.Type, conn.FromPort) {
		return NewValidationError(conn.From, "connections",
			fmt.Sprintf("%s has no output port %s", from.Type, conn.FromPort), ErrUnknownPort)
	}
	if !catalog.HasInput(to.Type, conn.ToPort) {
		return NewValidationError(conn.To, "connections",
			fmt.Sprintf("%s has no input port %s", to.Type, conn.ToPort), ErrUnknownPort)
	}
	return nil
}
