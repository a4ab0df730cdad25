package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory keeps records in a map. It is also the read model the SQL
// backends hydrate on open.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record), now: func() time.Time { return time.Now().UTC() }}
}

// Save inserts or replaces rec. CreatedAt is kept from the stored record;
// UpdatedAt is always refreshed.
func (m *Memory) Save(_ context.Context, rec Record) (Record, error) {
	rec, err := m.stamp(rec)
	if err != nil {
		return Record{}, err
	}
	m.put(rec)
	return rec, nil
}

func (m *Memory) stamp(rec Record) (Record, error) {
	if rec.ID == "" {
		return Record{}, fmt.Errorf("catalog record without id")
	}
	m.mu.RLock()
	prev, ok := m.records[rec.ID]
	m.mu.RUnlock()
	now := m.now()
	if ok {
		rec.CreatedAt = prev.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return rec, nil
}

func (m *Memory) put(rec Record) {
	m.mu.Lock()
	m.records[rec.ID] = rec
	m.mu.Unlock()
}

func (m *Memory) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// List returns matching records, oldest first.
func (m *Memory) List(_ context.Context, filter Filter) ([]Record, error) {
	m.mu.RLock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		if filter.match(rec) {
			out = append(out, rec)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return false, nil
	}
	delete(m.records, id)
	return true, nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) load(recs []Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range recs {
		m.records[rec.ID] = rec
	}
}
