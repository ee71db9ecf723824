package domain

import (
	"fmt"
	"time"
)

// CursorType — тип курсора, по которому отслеживается прогресс задачи.
//
// Для каждой пары (TLD, CursorType) хранится ровно один watermark.
type CursorType string

const (
	// CursorRDEStaging — генерация полного депозита RDE (ежедневно).
	CursorRDEStaging CursorType = "RDE_STAGING"

	// CursorRDEUpload — загрузка депозита RDE агенту.
	CursorRDEUpload CursorType = "RDE_UPLOAD"

	// CursorRDEReport — отправка отчёта о депозите в ICANN.
	CursorRDEReport CursorType = "RDE_REPORT"

	// CursorBRDA — генерация thin-депозита BRDA (еженедельно).
	CursorBRDA CursorType = "BRDA"

	// CursorICANNUploadTx — загрузка transactions-отчёта ICANN.
	CursorICANNUploadTx CursorType = "ICANN_UPLOAD_TX"

	// CursorICANNUploadActivity — загрузка activity-отчёта ICANN.
	CursorICANNUploadActivity CursorType = "ICANN_UPLOAD_ACTIVITY"
)

// CursorTypes возвращает все известные типы курсоров.
func CursorTypes() []CursorType {
	return []CursorType{
		CursorRDEStaging,
		CursorRDEUpload,
		CursorRDEReport,
		CursorBRDA,
		CursorICANNUploadTx,
		CursorICANNUploadActivity,
	}
}

// String возвращает строковое представление CursorType.
func (t CursorType) String() string {
	return string(t)
}

// ParseCursorType парсит строку в CursorType.
// Неизвестное значение — ошибка (в отличие от статусов, дефолта нет).
func ParseCursorType(s string) (CursorType, error) {
	for _, t := range CursorTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown cursor type %q", s)
}

// Cursor — watermark периодической задачи для конкретного TLD.
//
// Watermark означает "следующий запуск не нужен раньше этого времени".
// Значение только растёт и сдвигается лишь после успешного выполнения
// задачи за период, который оно обозначает.
type Cursor struct {
	// Scope — TLD (или другой ключ партиции).
	Scope string `json:"scope"`

	// Type — тип курсора.
	Type CursorType `json:"type"`

	// Watermark — логическое время следующего требуемого запуска.
	Watermark time.Time `json:"watermark"`

	// UpdatedAt — время последней записи.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDue проверяет, пора ли запускать задачу за период watermark.
// Задача due, если watermark не позже начала текущих суток.
func (c *Cursor) IsDue(startOfToday time.Time) bool {
	return !c.Watermark.After(startOfToday)
}

// Lag возвращает отставание курсора от начала текущих суток.
// Для курсора в будущем возвращает 0.
func (c *Cursor) Lag(startOfToday time.Time) time.Duration {
	if c.Watermark.After(startOfToday) {
		return 0
	}
	return startOfToday.Sub(c.Watermark)
}
