package cursor

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shaiso/Escrow/internal/clock"
	"github.com/shaiso/Escrow/internal/domain"
)

type memoryKey struct {
	scope string
	typ   domain.CursorType
}

// MemoryStore — Store внутри одного процесса.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	cursors map[memoryKey]domain.Cursor
}

// NewMemoryStore создаёт пустой MemoryStore. c используется для UpdatedAt.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.System{}
	}
	return &MemoryStore{clock: c, cursors: make(map[memoryKey]domain.Cursor)}
}

// Load реализует Store.
func (s *MemoryStore) Load(_ context.Context, scope string, t domain.CursorType) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cursors[memoryKey{scope, t}]
	if !ok {
		return time.Time{}, false, nil
	}
	return c.Watermark, true, nil
}

// Save реализует Store.
func (s *MemoryStore) Save(_ context.Context, scope string, t domain.CursorType, watermark time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey{scope, t}
	if cur, ok := s.cursors[k]; ok {
		if err := CheckAdvance(cur.Watermark, watermark); err != nil {
			return err
		}
	}
	s.put(k, watermark)
	return nil
}

// Advance реализует Store.
func (s *MemoryStore) Advance(_ context.Context, scope string, t domain.CursorType, from, to time.Time) error {
	if err := CheckAdvance(from, to); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey{scope, t}
	if cur, ok := s.cursors[k]; ok && !cur.Watermark.Equal(from) {
		return ErrCursorMoved
	}
	s.put(k, to)
	return nil
}

// List реализует Store.
func (s *MemoryStore) List(_ context.Context) ([]domain.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Cursor, 0, len(s.cursors))
	for _, c := range s.cursors {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Cursor) int {
		if c := strings.Compare(a.Scope, b.Scope); c != 0 {
			return c
		}
		return strings.Compare(string(a.Type), string(b.Type))
	})
	return out, nil
}

// Reset выставляет курсор без проверки монотонности.
func (s *MemoryStore) Reset(_ context.Context, scope string, t domain.CursorType, watermark time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(memoryKey{scope, t}, watermark)
	return nil
}

func (s *MemoryStore) put(k memoryKey, watermark time.Time) {
	s.cursors[k] = domain.Cursor{
		Scope:     k.scope,
		Type:      k.typ,
		Watermark: watermark.UTC(),
		UpdatedAt: s.clock.Now(),
	}
}
