package lock

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shaiso/Escrow/internal/domain"
)

type memoryKey struct {
	name  string
	scope string
}

// MemoryStore — Store внутри одного процесса.
// Подходит для STORE_DRIVER=memory и для тестов.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[memoryKey]domain.Lock
}

// NewMemoryStore создаёт пустой MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: make(map[memoryKey]domain.Lock)}
}

// TryAcquire реализует Store.
func (s *MemoryStore) TryAcquire(_ context.Context, l domain.Lock, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey{l.Name, l.Scope}
	if cur, ok := s.locks[k]; ok && !cur.IsExpired(now) {
		return false, nil
	}
	s.locks[k] = l
	return true, nil
}

// Release реализует Store.
func (s *MemoryStore) Release(_ context.Context, name, scope, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := memoryKey{name, scope}
	cur, ok := s.locks[k]
	if !ok || !cur.HeldBy(token) {
		return false, nil
	}
	delete(s.locks, k)
	return true, nil
}

// Get реализует Store.
func (s *MemoryStore) Get(_ context.Context, name, scope string) (*domain.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.locks[memoryKey{name, scope}]
	if !ok {
		return nil, ErrNotFound
	}
	return &cur, nil
}

// List реализует Store.
func (s *MemoryStore) List(_ context.Context) ([]domain.Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Lock, 0, len(s.locks))
	for _, l := range s.locks {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b domain.Lock) int {
		if c := strings.Compare(a.Scope, b.Scope); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}
