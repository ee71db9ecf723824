package mq

import (
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery — доставленное сообщение вместе с AMQP-конвертом.
// Ack/Nack выполняет Consumer по результату Handler.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Attempt возвращает номер попытки из заголовка HeaderAttempt.
// Сообщение без заголовка считается первой попыткой.
func (d *Delivery) Attempt() int {
	switch v := d.Raw.Headers[HeaderAttempt].(type) {
	case int32:
		return max(int(v), 1)
	case int64:
		return max(int(v), 1)
	case int:
		return max(v, 1)
	default:
		return 1
	}
}

// ParsePayload декодирует payload сообщения в T.
// После json.Unmarshal в Message payload лежит как map[string]any,
// поэтому он перекодируется через JSON.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return out, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("unmarshal payload: %w", err)
	}
	return out, nil
}
