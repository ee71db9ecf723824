package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Escrow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTrigger MessageType = "escrow.trigger"
)

// HeaderAttempt — номер попытки триггера (1 для первой доставки).
const HeaderAttempt = "x-escrow-attempt"

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// TriggerPayload — payload триггера: какую задачу запустить и для какой зоны.
type TriggerPayload struct {
	Task string `json:"task"`
	TLD  string `json:"tld"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, headers amqp.Table) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Headers:      headers,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishTrigger публикует триггер задачи.
// Потребитель: escrow-worker.
func (p *Publisher) PublishTrigger(ctx context.Context, payload TriggerPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTrigger,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTriggers, RoutingKeyTrigger, msg, amqp.Table{HeaderAttempt: int32(1)})
}

// PublishRetry кладёт триггер в очередь повторов с номером попытки attempt.
// ID сообщения сохраняется, чтобы повторы одного триггера связывались в логах.
func (p *Publisher) PublishRetry(ctx context.Context, msg Message, attempt int) error {
	return p.Publish(ctx, ExchangeRetry, RoutingKeyTrigger, &msg, amqp.Table{HeaderAttempt: int32(attempt)})
}

// PublishEvent публикует событие runner; routing key — вид события.
func (p *Publisher) PublishEvent(ctx context.Context, ev domain.Event) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageType(ev.Kind),
		Payload:   ev,
		Timestamp: ev.At,
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKey(ev.Kind), msg, nil)
}
