package domain

import (
	"time"
)

// Lock — аренда (lease) именованного мьютекса в рамках scope.
//
// В каждый момент для пары (Name, Scope) существует не больше одной
// неистёкшей записи. Истёкшая запись не удаляется — следующий
// претендент просто перезаписывает её в транзакции.
type Lock struct {
	// Name — имя блокировки, обычно "<task> <tld>".
	Name string `json:"name"`

	// Scope — TLD (или другой ключ партиции).
	Scope string `json:"scope"`

	// HolderToken — непрозрачный токен владельца, уникален для каждой попытки захвата.
	HolderToken string `json:"holder_token"`

	// AcquiredAt — время захвата.
	AcquiredAt time.Time `json:"acquired_at"`

	// ExpiresAt — время, после которого блокировку может забрать другой.
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired проверяет, истекла ли аренда к моменту now.
// Граница включительная: при now == ExpiresAt блокировка уже свободна.
func (l *Lock) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// HeldBy проверяет, принадлежит ли блокировка владельцу token.
func (l *Lock) HeldBy(token string) bool {
	return l.HolderToken == token
}
