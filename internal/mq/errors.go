package mq

import "errors"

// ErrReject — обработчик отказывается от сообщения окончательно.
// Consumer делает nack без requeue, и сообщение уходит в DLQ.
var ErrReject = errors.New("message rejected")
