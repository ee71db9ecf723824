package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind — дискриминатор события runner.
type EventKind string

const (
	EventCompleted EventKind = "escrow.completed"
	EventFailed    EventKind = "escrow.failed"
	EventSkipped   EventKind = "escrow.skipped"
)

// Event — событие о результате вызова runner.
//
// Tagged union: Kind определяет, какое из полей-вариантов заполнено.
// Ровно один вариант не nil; JSON-декодирование выбирает вариант по Kind.
type Event struct {
	Kind EventKind `json:"kind"`
	Task string    `json:"task"`
	TLD  string    `json:"tld"`
	At   time.Time `json:"at"`

	Completed *CompletedEvent `json:"-"`
	Failed    *FailedEvent    `json:"-"`
	Skipped   *SkippedEvent   `json:"-"`
}

// CompletedEvent — задача выполнена и курсор сдвинут.
type CompletedEvent struct {
	Watermark     time.Time `json:"watermark"`
	NextWatermark time.Time `json:"next_watermark"`
	Duration      float64   `json:"duration_sec"`
}

// FailedEvent — задача вернула ошибку.
type FailedEvent struct {
	Watermark time.Time `json:"watermark"`
	Error     string    `json:"error"`
}

// SkippedEvent — задача не запускалась (ещё не пора или блокировка занята).
type SkippedEvent struct {
	Outcome   Outcome   `json:"outcome"`
	Watermark time.Time `json:"watermark"`
}

// NewCompletedEvent создаёт событие escrow.completed.
func NewCompletedEvent(task, tld string, at time.Time, p CompletedEvent) Event {
	return Event{Kind: EventCompleted, Task: task, TLD: tld, At: at, Completed: &p}
}

// NewFailedEvent создаёт событие escrow.failed.
func NewFailedEvent(task, tld string, at time.Time, p FailedEvent) Event {
	return Event{Kind: EventFailed, Task: task, TLD: tld, At: at, Failed: &p}
}

// NewSkippedEvent создаёт событие escrow.skipped.
func NewSkippedEvent(task, tld string, at time.Time, p SkippedEvent) Event {
	return Event{Kind: EventSkipped, Task: task, TLD: tld, At: at, Skipped: &p}
}

// Payload возвращает заполненный вариант.
func (e *Event) Payload() any {
	switch e.Kind {
	case EventCompleted:
		return e.Completed
	case EventFailed:
		return e.Failed
	case EventSkipped:
		return e.Skipped
	default:
		return nil
	}
}

type eventWire struct {
	Kind    EventKind       `json:"kind"`
	Task    string          `json:"task"`
	TLD     string          `json:"tld"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalJSON кодирует событие как {kind, task, tld, at, payload}.
func (e Event) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload())
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Kind, err)
	}
	return json.Marshal(eventWire{
		Kind:    e.Kind,
		Task:    e.Task,
		TLD:     e.TLD,
		At:      e.At,
		Payload: payload,
	})
}

// UnmarshalJSON декодирует payload в вариант, выбранный по Kind.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*e = Event{Kind: w.Kind, Task: w.Task, TLD: w.TLD, At: w.At}

	switch w.Kind {
	case EventCompleted:
		e.Completed = &CompletedEvent{}
		return json.Unmarshal(w.Payload, e.Completed)
	case EventFailed:
		e.Failed = &FailedEvent{}
		return json.Unmarshal(w.Payload, e.Failed)
	case EventSkipped:
		e.Skipped = &SkippedEvent{}
		return json.Unmarshal(w.Payload, e.Skipped)
	default:
		return fmt.Errorf("unknown event kind %q", w.Kind)
	}
}
