// Package worker выполняет pipeline, поставленные в очередь.
//
// Worker читает две очереди RabbitMQ:
//   - pipelines.requested — спецификация pipeline, которую надо выполнить
//     через executor.Executor; результат публикуется как pipeline.executed
//   - executions.recorded — готовые выполнения, которые сохраняются
//     в журнал (repo.ExecutionRepo)
//
// Невалидная спецификация сразу уходит в DLQ. Повторная запись одного
// выполнения не считается ошибкой, поэтому повтор доставки безопасен.
//
// Воркеры масштабируются горизонтально: несколько экземпляров читают
// одни и те же очереди.
package worker
