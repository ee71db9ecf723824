package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно сообщение.
// nil — ack; ошибка с ErrReject — nack в DLQ; любая другая ошибка — nack с requeue.
type Handler func(ctx context.Context, msg *Delivery) error

// disposition — чем закончилась доставка.
type disposition int

const (
	dispAck disposition = iota
	dispRequeue
	dispReject
)

// Consumer читает очередь и передаёт сообщения в Handler.
// Переживает переподключения Connection: после обрыва ждёт
// ReconnectNotify и подписывается заново.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	types    []MessageType
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Types — допустимые типы сообщений; прочие уходят в DLQ.
	// Пусто — любые.
	Types []MessageType

	Prefetch int // default: 1
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", cfg.Queue),
		queue:    cfg.Queue,
		types:    cfg.Types,
		handler:  cfg.Handler,
		prefetch: max(cfg.Prefetch, 1),
	}
}

// Start читает очередь до отмены ctx или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consumer interrupted, waiting for reconnect", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("reconnected, resubscribing")
		}
	}
}

// Stop останавливает Consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// session — одна подписка на текущем канале. Возвращается, когда
// канал доставок закрыт или ctx отменён.
func (c *Consumer) session(ctx context.Context) error {
	ch := c.conn.Channel()
	if ch == nil {
		return ErrNotConnected
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	// autoAck=false: подтверждаем после Handler.
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	c.logger.Info("consumer started", "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery декодирует сообщение, вызывает Handler и завершает доставку.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	var err error
	switch c.dispatch(ctx, raw) {
	case dispAck:
		err = raw.Ack(false)
	case dispRequeue:
		err = raw.Nack(false, true)
	case dispReject:
		err = raw.Nack(false, false)
	}
	if err != nil {
		// Канал закрыт: брокер вернёт сообщение в очередь сам.
		c.logger.Warn("failed to settle delivery", "delivery_tag", raw.DeliveryTag, "error", err)
	}
}

func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) disposition {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message", "error", err, "body", string(raw.Body))
		return dispReject
	}
	logger := c.logger.With("message_id", msg.ID, "type", msg.Type)

	if len(c.types) > 0 && !slices.Contains(c.types, msg.Type) {
		logger.Error("unexpected message type")
		return dispReject
	}

	logger.Debug("received message", "redelivered", raw.Redelivered)

	err := c.handler(ctx, &Delivery{Message: msg, Raw: raw})
	switch {
	case err == nil:
		return dispAck
	case errors.Is(err, ErrReject):
		logger.Error("message rejected", "error", err)
		return dispReject
	default:
		logger.Warn("handler failed, requeueing", "error", err)
		return dispRequeue
	}
}
