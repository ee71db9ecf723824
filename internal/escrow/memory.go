package escrow

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shaiso/Escrow/internal/domain"
)

// MemoryDeposits — DepositStore внутри одного процесса (STORE_DRIVER=memory).
type MemoryDeposits struct {
	mu       sync.Mutex
	deposits []domain.Deposit
}

// NewMemoryDeposits создаёт пустое хранилище.
func NewMemoryDeposits() *MemoryDeposits {
	return &MemoryDeposits{}
}

// NextRevision реализует DepositStore.
func (m *MemoryDeposits) NextRevision(_ context.Context, tld string, watermark time.Time, mode domain.DepositMode) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := 0
	for _, d := range m.deposits {
		if d.TLD == tld && d.Watermark.Equal(watermark) && d.Mode == mode && d.Revision >= next {
			next = d.Revision + 1
		}
	}
	return next, nil
}

// Create реализует DepositStore.
func (m *MemoryDeposits) Create(_ context.Context, d *domain.Deposit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cur := range m.deposits {
		if cur.TLD == d.TLD && cur.Watermark.Equal(d.Watermark) && cur.Mode == d.Mode && cur.Revision == d.Revision {
			return fmt.Errorf("deposit %s already exists", d.FileName)
		}
	}
	m.deposits = append(m.deposits, *d)
	return nil
}

// List возвращает депозиты, новые первыми. Пустой tld — все зоны.
func (m *MemoryDeposits) List(_ context.Context, tld string, limit int) ([]domain.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Deposit
	for _, d := range m.deposits {
		if tld == "" || d.TLD == tld {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b domain.Deposit) int {
		if c := b.Watermark.Compare(a.Watermark); c != 0 {
			return c
		}
		return b.Revision - a.Revision
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// StaticSnapshotter возвращает одни и те же счётчики для любой зоны и момента.
type StaticSnapshotter domain.ObjectCounts

// Snapshot реализует Snapshotter.
func (s StaticSnapshotter) Snapshot(context.Context, string, time.Time) (domain.ObjectCounts, error) {
	return domain.ObjectCounts(s), nil
}
