// Package mq — события Pipeflow поверх RabbitMQ.
//
// Структура:
//   - connection.go — соединение с переподключением
//   - topology.go   — обменники, очереди, привязки
//   - publisher.go  — конверт Message и публикация событий
//   - consumer.go   — чтение очереди с ack/nack и DLQ
//   - notifier.go   — IndexNotifier, слушатель коллекции
//
// Топология:
//
//	pipeflow.events (topic)
//	├── pipelines.requested [pipeline.requested]  → pipeflow worker
//	├── executions.recorded [pipeline.executed]   → pipeflow worker (журнал в БД)
//	└── index.updated       [index.updated]       → pipeflow index watch
//
//	pipeflow.dlq (direct)
//	└── dlq.pipelines [dead]
package mq
