package worker

import "errors"

// Ошибки воркера.
var (
	// ErrRetryExhausted — триггер исчерпал попытки и уходит в DLQ.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrBadTrigger — триггер не разбирается или ссылается на неизвестную задачу/зону.
	ErrBadTrigger = errors.New("bad trigger")
)
