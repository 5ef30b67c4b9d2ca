package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Pipeflow/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

const (
	MessageTypePipelineRequested MessageType = "pipeline.requested"
	MessageTypePipelineExecuted  MessageType = "pipeline.executed"
	MessageTypeIndexUpdated      MessageType = "index.updated"
)

// Message — конверт всех сообщений.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// PipelineRequestedPayload — запрос на выполнение pipeline.
type PipelineRequestedPayload struct {
	RequestID uuid.UUID           `json:"request_id"`
	Spec      domain.PipelineSpec `json:"spec"`
}

// PipelineExecutedPayload — итог выполнения pipeline.
type PipelineExecutedPayload struct {
	Execution *domain.Execution `json:"execution"`
}

// IndexUpdatedPayload — индекс коллекции сохранён.
type IndexUpdatedPayload struct {
	Entities   int      `json:"entities"`
	Workspaces []string `json:"workspaces"`
}

// NewMessage собирает сообщение с новым ID.
func NewMessage(typ MessageType, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      typ,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ParsePayload разбирает payload сообщения.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return out, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return out, nil
}

// Publisher публикует события в ExchangeEvents.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish отправляет сообщение с routing key.
func (p *Publisher) Publish(ctx context.Context, key RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(ExchangeEvents), string(key), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", key, err)
		}

		p.logger.Debug("published message",
			"routing_key", key,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

func (p *Publisher) publish(ctx context.Context, key RoutingKey, typ MessageType, payload any) error {
	msg, err := NewMessage(typ, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, key, msg)
}

// PublishPipelineRequested ставит pipeline в очередь на выполнение.
// Потребитель: worker.
func (p *Publisher) PublishPipelineRequested(ctx context.Context, spec *domain.PipelineSpec) (uuid.UUID, error) {
	id := uuid.New()
	payload := PipelineRequestedPayload{RequestID: id, Spec: *spec}
	if err := p.publish(ctx, RoutingKeyPipelineRequested, MessageTypePipelineRequested, payload); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// PublishPipelineExecuted сообщает о завершённом выполнении.
// Реализует executor.Publisher.
func (p *Publisher) PublishPipelineExecuted(ctx context.Context, exec *domain.Execution) error {
	return p.publish(ctx, RoutingKeyPipelineExecuted, MessageTypePipelineExecuted, PipelineExecutedPayload{Execution: exec})
}

// PublishIndexUpdated сообщает о сохранении индекса коллекции.
func (p *Publisher) PublishIndexUpdated(ctx context.Context, payload IndexUpdatedPayload) error {
	return p.publish(ctx, RoutingKeyIndexUpdated, MessageTypeIndexUpdated, payload)
}
