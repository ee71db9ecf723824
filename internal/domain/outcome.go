package domain

// Outcome — результат одного вызова runner.
//
// Автомат состояний вызова:
//
//	START → DONE (ещё не пора)
//	      → BUSY (блокировка занята)
//	      → RUNNING → ADVANCED (успех)
//	                ↘ FAILED (ошибка задачи, курсор не тронут)
type Outcome string

const (
	// OutcomeSuccess — задача выполнена, курсор сдвинут на один интервал.
	OutcomeSuccess Outcome = "SUCCESS"

	// OutcomeAlreadyDone — курсор в будущем, делать нечего.
	OutcomeAlreadyDone Outcome = "ALREADY_DONE"

	// OutcomeLockBusy — другой экземпляр держит блокировку.
	OutcomeLockBusy Outcome = "LOCK_BUSY"

	// OutcomeTaskFailure — задача вернула ошибку.
	OutcomeTaskFailure Outcome = "TASK_FAILURE"
)

// String возвращает строковое представление Outcome.
func (o Outcome) String() string {
	return string(o)
}

// ShouldRetry возвращает true, если триггер должен повторить вызов позже.
func (o Outcome) ShouldRetry() bool {
	switch o {
	case OutcomeLockBusy, OutcomeTaskFailure:
		return true
	default:
		return false
	}
}

// IsBenign возвращает true для исходов, которые не требуют внимания оператора.
func (o Outcome) IsBenign() bool {
	return o != OutcomeTaskFailure
}
