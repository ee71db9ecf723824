package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeTriggers Exchange = "escrow.triggers"
	ExchangeRetry    Exchange = "escrow.retry"
	ExchangeEvents   Exchange = "escrow.events"
	ExchangeDLQ      Exchange = "escrow.dlq"
)

// Queues — имена очередей.
const (
	QueueTriggers      Queue = "escrow.triggers"
	QueueTriggersRetry Queue = "escrow.triggers.retry"
	QueueEvents        Queue = "escrow.events"
	QueueDLQTriggers   Queue = "dlq.triggers"
)

// Routing keys.
const (
	RoutingKeyTrigger     RoutingKey = "trigger"
	RoutingKeyAllEvents   RoutingKey = "escrow.#"
	RoutingKeyDLQTriggers RoutingKey = "triggers"
)

// DefaultRetryDelay — сколько триггер ждёт в очереди повторов.
const DefaultRetryDelay = 30 * time.Second

// TopologyConfig — параметры топологии.
type TopologyConfig struct {
	// RetryDelay — TTL сообщений в escrow.triggers.retry (default: 30s).
	RetryDelay time.Duration
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection, cfg TopologyConfig) error {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch, cfg); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeTriggers, "direct"},
		{ExchangeRetry, "direct"},
		{ExchangeEvents, "topic"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// queueArgs возвращает аргументы очередей.
func queueArgs(cfg TopologyConfig) map[Queue]amqp.Table {
	return map[Queue]amqp.Table{
		// escrow.triggers — отклонённые сообщения уходят в DLQ
		QueueTriggers: {
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQTriggers),
		},
		// escrow.triggers.retry — по истечении TTL возвращает триггер в escrow.triggers
		QueueTriggersRetry: {
			"x-message-ttl":             cfg.RetryDelay.Milliseconds(),
			"x-dead-letter-exchange":    string(ExchangeTriggers),
			"x-dead-letter-routing-key": string(RoutingKeyTrigger),
		},
	}
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel, cfg TopologyConfig) error {
	args := queueArgs(cfg)

	for _, q := range []Queue{QueueTriggers, QueueTriggersRetry, QueueEvents, QueueDLQTriggers} {
		_, err := ch.QueueDeclare(
			string(q), // name
			true,      // durable
			false,     // delete when unused
			false,     // exclusive
			false,     // no-wait
			args[q],   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueTriggers, RoutingKeyTrigger, ExchangeTriggers},
		{QueueTriggersRetry, RoutingKeyTrigger, ExchangeRetry},
		{QueueEvents, RoutingKeyAllEvents, ExchangeEvents},
		{QueueDLQTriggers, RoutingKeyDLQTriggers, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Escrow RabbitMQ Topology:

    escrow.triggers (direct)
    └── escrow.triggers [routing: trigger]
            Consumer: escrow-worker
            DLQ: dlq.triggers

    escrow.retry (direct)
    └── escrow.triggers.retry [routing: trigger]
            TTL → escrow.triggers

    escrow.events (topic)
    └── escrow.events [routing: escrow.#]

    escrow.dlq (direct)
    └── dlq.triggers [routing: triggers]
            Manual processing
  `
}
