package api

import (
	"time"

	"github.com/shaiso/Escrow/internal/domain"
	"github.com/shaiso/Escrow/internal/escrow"
	"github.com/shaiso/Escrow/internal/runner"
)

// Escrow DTOs

// JobResponse — задача каталога.
type JobResponse struct {
	Name       string   `json:"name"`
	CursorType string   `json:"cursor_type"`
	Mode       string   `json:"mode"`
	Interval   string   `json:"interval"`
	Timeout    string   `json:"timeout"`
	Cron       string   `json:"cron"`
	TLDs       []string `json:"tlds"`
}

// JobFromCatalog конвертирует escrow.Job в JobResponse.
func JobFromCatalog(j escrow.Job) JobResponse {
	return JobResponse{
		Name:       j.Name,
		CursorType: j.CursorType.String(),
		Mode:       string(j.Mode),
		Interval:   j.Interval.String(),
		Timeout:    j.Timeout.String(),
		Cron:       j.Cron,
		TLDs:       j.TLDs,
	}
}

// RunResponse — результат запуска задачи (только для SUCCESS).
type RunResponse struct {
	Task            string    `json:"task"`
	TLD             string    `json:"tld"`
	Outcome         string    `json:"outcome"`
	Watermark       time.Time `json:"watermark"`
	NextWatermark   time.Time `json:"next_watermark"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// RunFromResult конвертирует runner.Result в RunResponse.
func RunFromResult(task, tld string, res runner.Result) RunResponse {
	return RunResponse{
		Task:            task,
		TLD:             tld,
		Outcome:         res.Outcome.String(),
		Watermark:       res.Watermark,
		NextWatermark:   res.NextWatermark,
		DurationSeconds: res.Duration.Seconds(),
	}
}

// Cursor DTOs

// CursorResponse — курсор.
// Persisted=false — курсора нет в хранилище, показан watermark по умолчанию.
type CursorResponse struct {
	TLD       string     `json:"tld"`
	Type      string     `json:"type"`
	Watermark time.Time  `json:"watermark"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Persisted bool       `json:"persisted"`
	Due       bool       `json:"due"`
}

// CursorFromDomain конвертирует domain.Cursor в CursorResponse.
func CursorFromDomain(c domain.Cursor, startOfToday time.Time) CursorResponse {
	resp := CursorResponse{
		TLD:       c.Scope,
		Type:      c.Type.String(),
		Watermark: c.Watermark,
		Persisted: true,
		Due:       c.IsDue(startOfToday),
	}
	if !c.UpdatedAt.IsZero() {
		updated := c.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}

// ResetCursorRequest — запрос на административную установку курсора.
type ResetCursorRequest struct {
	Watermark time.Time `json:"watermark"`
}

// Lock DTOs

// LockResponse — запись блокировки.
type LockResponse struct {
	Name       string    `json:"name"`
	Scope      string    `json:"scope"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Expired    bool      `json:"expired"`
}

// LockFromDomain конвертирует domain.Lock в LockResponse.
// Токен владельца наружу не отдаётся.
func LockFromDomain(l domain.Lock, now time.Time) LockResponse {
	return LockResponse{
		Name:       l.Name,
		Scope:      l.Scope,
		AcquiredAt: l.AcquiredAt,
		ExpiresAt:  l.ExpiresAt,
		Expired:    l.IsExpired(now),
	}
}

// Deposit DTOs

// DepositResponse — записанный депозит.
type DepositResponse struct {
	TLD       string    `json:"tld"`
	Watermark time.Time `json:"watermark"`
	Mode      string    `json:"mode"`
	Revision  int       `json:"revision"`
	FileName  string    `json:"file_name"`
	Domains   int64     `json:"domains"`
	Contacts  int64     `json:"contacts"`
	Hosts     int64     `json:"hosts"`
	CreatedAt time.Time `json:"created_at"`
}

// DepositFromDomain конвертирует domain.Deposit в DepositResponse.
func DepositFromDomain(d domain.Deposit) DepositResponse {
	return DepositResponse{
		TLD:       d.TLD,
		Watermark: d.Watermark,
		Mode:      string(d.Mode),
		Revision:  d.Revision,
		FileName:  d.FileName,
		Domains:   d.Objects.Domains,
		Contacts:  d.Objects.Contacts,
		Hosts:     d.Objects.Hosts,
		CreatedAt: d.CreatedAt,
	}
}
