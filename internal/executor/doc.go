// Package executor выполняет PipelineSpec поверх engine.
//
// Поток выполнения:
//
//  1. engine.Validate и engine.BuildDAG проверяют spec
//  2. compile создаёт модули из modules.Registry, соединения
//     и скрытые модули параметров
//  3. restore подставляет результаты из Cache (если задан)
//  4. каждый sink модуль обновляется через Module.Update
//  5. результаты модулей собираются в domain.Execution,
//     свежие результаты сохраняются в Cache
//  6. Publisher получает событие pipeline.executed
//
// # Кэш
//
// Сигнатура модуля — xxhash от типа, параметров и входящих соединений
// вместе с сигнатурами producer'ов. Модуль, у которого IsCacheable()
// возвращает false, и все зависящие от него модули не кэшируются.
//
// # Ошибки
//
// Ошибка модуля записывается в его результат (FAILED), модули, которые
// от него зависят, получают NOT_EXECUTED. Остальные sink модули
// выполняются. Execute возвращает error только при ошибке валидации,
// компиляции или отмене context.
//
// # Файлы пакета
//
//   - executor.go — Executor, Config, Execute
//   - compile.go  — сборка engine.Pipeline из spec
//   - cache.go    — Cache, MemoryCache, сигнатуры
//   - sink.go     — engine.LoggingSink на slog и Prometheus
package executor
