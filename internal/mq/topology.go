package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

const (
	// ExchangeEvents — события pipeline и индекса (topic).
	ExchangeEvents Exchange = "pipeflow.events"

	// ExchangeDLQ — сообщения, которые не удалось обработать.
	ExchangeDLQ Exchange = "pipeflow.dlq"
)

const (
	QueuePipelinesRequested Queue = "pipelines.requested"
	QueueExecutionsRecorded Queue = "executions.recorded"
	QueueIndexUpdated       Queue = "index.updated"
	QueueDLQ                Queue = "dlq.pipelines"
)

const (
	RoutingKeyPipelineRequested RoutingKey = "pipeline.requested"
	RoutingKeyPipelineExecuted  RoutingKey = "pipeline.executed"
	RoutingKeyIndexUpdated      RoutingKey = "index.updated"
	RoutingKeyDead              RoutingKey = "dead"
)

// SetupTopology объявляет обменники, очереди и привязки.
// Объявление идемпотентно, его делает каждый процесс при старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range []Exchange{ExchangeEvents, ExchangeDLQ} {
			kind := amqp.ExchangeTopic
			if ex == ExchangeDLQ {
				kind = amqp.ExchangeDirect
			}
			if err := ch.ExchangeDeclare(string(ex), kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		deadLetter := amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDead),
		}
		bindings := []struct {
			queue    Queue
			key      RoutingKey
			exchange Exchange
			args     amqp.Table
		}{
			{QueuePipelinesRequested, RoutingKeyPipelineRequested, ExchangeEvents, deadLetter},
			{QueueExecutionsRecorded, RoutingKeyPipelineExecuted, ExchangeEvents, deadLetter},
			{QueueIndexUpdated, RoutingKeyIndexUpdated, ExchangeEvents, nil},
			{QueueDLQ, RoutingKeyDead, ExchangeDLQ, nil},
		}
		for _, b := range bindings {
			if _, err := ch.QueueDeclare(string(b.queue), true, false, false, false, b.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}
			if err := ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}
