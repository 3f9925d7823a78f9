package planstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type MemoryPlanStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{
		records: map[string]Record{},
	}
}

func (m *MemoryPlanStore) Put(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[r.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, r.ID)
	}
	m.records[r.ID] = r
	return nil
}

func (m *MemoryPlanStore) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

func (m *MemoryPlanStore) List(_ context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	records := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	m.mu.RUnlock()

	// ids are k-sorted, so they break ties of equal timestamps
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *MemoryPlanStore) Shutdown(_ context.Context) error {
	return nil
}
