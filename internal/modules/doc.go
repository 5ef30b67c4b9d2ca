// Package modules содержит реестр типов модулей и стандартные модули.
//
// # Registry
//
// Registry хранит Descriptor каждого типа: родителя, порты и фабрику
// логики. Отношение подтипов задаётся цепочкой Parent:
//
//	Module
//	├── Variant            (принимает любой тип)
//	├── Constant           (абстрактный)
//	│   ├── Integer, Float, String, Boolean, List, Dictionary
//	├── Calc, Concat, ListOf, Format, Identity
//	├── InputPort, OutputPort
//	└── Timestamp
//
// Registry реализует engine.TypeChecker (для Pipeline) и engine.Catalog
// (для валидации PipelineSpec):
//
//	reg := modules.DefaultRegistry()
//	p := engine.NewPipeline(reg)
//	m, err := reg.Instantiate(p, "Calc", "sum")
//
// # Параметры
//
// Параметры модулей в PipelineSpec приводятся к типу входного порта
// через Coerce: значение, которое уже подходит, остаётся как есть,
// иначе пробуется Convert допустимых Constant типов.
//
// # Файлы пакета
//
//   - registry.go  — Registry, Descriptor, PortSpec
//   - constant.go  — Constant типы и их Convert
//   - basic.go     — Calc, Identity, Timestamp и регистрация стандартных типов
//   - lists.go     — Concat, ListOf
//   - format.go    — Format и Render (Go templates)
//   - ports.go     — InputPort, OutputPort
//   - errors.go    — ошибки пакета
package modules
