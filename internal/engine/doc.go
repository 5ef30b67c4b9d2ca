// Package engine содержит движок выполнения pipeline.
//
// Включает:
//   - module.go    — Module: входные/выходные порты и протокол Update/UpdateUpstream
//   - connector.go — Connector: ребро producer → consumer с ожидаемыми типами
//   - pipeline.go  — Pipeline: arena модулей, индексированных ModuleID
//   - types.go     — Type и коллаборатор TypeChecker
//   - errors.go    — таксономия ошибок выполнения и валидации
//   - dag.go       — построение DAG из PipelineSpec, поиск циклов
//   - parser.go    — разбор и валидация PipelineSpec
//
// Выполнение однопоточное: Update рекурсивно обновляет upstream модули
// в глубину, флаг upToDate гарантирует не более одного compute на модуль
// за проход, даже если модуль достижим несколькими путями.
//
// Connector, тип выхода producer'а которого не подходит под порт,
// молча отключается. Это не ошибка: upstream модуль считается
// "ничего не выдавшим", а обязательный порт потом даст
// ErrMandatoryPortMissing.
package engine
