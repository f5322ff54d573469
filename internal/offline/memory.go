package offline

import (
	"context"
	"sync"

	"spartan-crm/internal/domain"
)

// MemoryStore keeps leads in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	leads map[string]domain.Lead
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leads: make(map[string]domain.Lead)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (s *MemoryStore) Put(_ context.Context, lead domain.Lead) error {
	if err := validate(lead); err != nil {
		return err
	}
	s.mu.Lock()
	s.leads[lead.ID] = lead
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.Apply(&l)
	if err := validate(l); err != nil {
		return nil, err
	}
	s.leads[id] = l
	return &l, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leads[id]; !ok {
		return ErrNotFound
	}
	delete(s.leads, id)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Lead, error) {
	return s.collect(func(domain.Lead) bool { return true }), nil
}

func (s *MemoryStore) ListBySyncStatus(_ context.Context, statuses ...domain.SyncStatus) ([]domain.Lead, error) {
	want := make(map[domain.SyncStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	return s.collect(func(l domain.Lead) bool { return want[l.SyncStatus] }), nil
}

func (s *MemoryStore) FindByName(_ context.Context, name string) ([]domain.Lead, error) {
	key := NameKey(name)
	return s.collect(func(l domain.Lead) bool { return NameKey(l.Name) == key }), nil
}

func (s *MemoryStore) collect(keep func(domain.Lead) bool) []domain.Lead {
	s.mu.RLock()
	out := make([]domain.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if keep(l) {
			out = append(out, l)
		}
	}
	s.mu.RUnlock()

	sortLeads(out)
	return out
}
