package encounter

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a mutex-guarded in-process Store. It backs development mode
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Encounter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Encounter)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, e *Encounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[e.AppointmentID] = e.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Encounter, 0, len(s.records))
	for _, e := range s.records {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].AppointmentID < out[j].AppointmentID
	})
	return out, nil
}
