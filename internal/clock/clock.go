// Package clock — источник времени, который передаётся в компоненты явно.
//
// Runner и менеджер блокировок никогда не вызывают time.Now() напрямую:
// решения об истечении аренды и о том, пора ли двигать курсор,
// принимаются по Clock. В тестах используется Fake.
package clock

import (
	"sync"
	"time"
)

// Clock возвращает текущее время.
type Clock interface {
	Now() time.Time
}

// System — реальные часы, всегда в UTC.
type System struct{}

// Now возвращает текущее время в UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fake — управляемые часы для тестов. Потокобезопасны.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake создаёт Fake, выставленные на t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t.UTC()}
}

// Now возвращает текущее значение часов.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set выставляет часы на t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}

// Advance сдвигает часы вперёд на d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// StartOfDay обрезает t до полуночи UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
