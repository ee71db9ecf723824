// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация триггеров, повторов и событий runner
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - escrow.trigger   — запустить задачу каталога для TLD
//   - escrow.completed — задача выполнена, курсор сдвинут
//   - escrow.failed    — задача упала
//   - escrow.skipped   — задача не запускалась (блокировка занята)
//
// Повторы: триггер с исходом LOCK_BUSY или TASK_FAILURE публикуется
// в escrow.retry с увеличенным счётчиком попыток. Очередь
// escrow.triggers.retry держит его RetryDelay и через dead-letter
// возвращает в escrow.triggers. После MaxAttempts сообщение уходит в DLQ.
package mq
