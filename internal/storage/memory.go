package storage

import (
	"context"
	"sync"

	"github.com/KilimcininKorOglu/obastore/internal/ref"
)

// Memory is a Backend held entirely in a map.
type Memory struct {
	mu      sync.RWMutex
	records map[ref.Ref][]byte
	closed  bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{records: make(map[ref.Ref][]byte)}
}

func (m *Memory) Load(ctx context.Context, fn func(Record) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrClosed
	}
	records := make([]Record, 0, len(m.records))
	for r, data := range m.records {
		records = append(records, Record{Ref: r, Data: data})
	}
	m.mu.RUnlock()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Apply(ctx context.Context, puts []Record, deletes []ref.Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, rec := range puts {
		m.records[rec.Ref] = append([]byte(nil), rec.Data...)
	}
	for _, r := range deletes {
		delete(m.records, r)
	}
	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
