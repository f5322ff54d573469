package leadstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"spartan-crm/internal/domain"
	"spartan-crm/internal/twenty"
)

// ErrUnknownLead is returned when updating a lead that is not in the current view
var ErrUnknownLead = errors.New("leadstore: lead not loaded")

// Remote is the part of the remote CRM client the view needs
type Remote interface {
	ListLeads(ctx context.Context, filter *twenty.LeadFilter) ([]domain.Lead, error)
	CreateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error)
	UpdateLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error)
	DeleteLead(ctx context.Context, id string) error
}

// State is a snapshot of the view
type State struct {
	Leads    []domain.Lead `json:"leads"`
	Filters  Filters       `json:"filters"`
	Loading  bool          `json:"loading"`
	Error    string        `json:"error,omitempty"`
	LoadedAt time.Time     `json:"loadedAt"`
}

// Store is the online-only current view of one tenant's remote leads.
// Every mutation goes to the remote CRM and is followed by a full reload.
type Store struct {
	remote Remote
	scope  *twenty.LeadFilter
	logger *zap.Logger

	mu    sync.RWMutex
	state State
}

// New builds a view over remote. scope, when set, limits loads to one rep.
func New(remote Remote, scope *twenty.LeadFilter, log *zap.Logger) *Store {
	if log == nil {
		log = zap.L()
	}
	return &Store{remote: remote, scope: scope, logger: log}
}

// Load replaces the view with the remote lead list
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.state.Loading = true
	s.mu.Unlock()

	leads, err := s.remote.ListLeads(ctx, s.scope)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	if err != nil {
		s.state.Error = err.Error()
		s.logger.Error("Failed to load leads", zap.Error(err))
		return err
	}
	for i := range leads {
		if leads[i].SyncStatus == "" {
			leads[i].SyncStatus = domain.SyncSynced
		}
	}
	s.state.Leads = leads
	s.state.Error = ""
	s.state.LoadedAt = time.Now()
	return nil
}

// AddLead creates lead remotely
func (s *Store) AddLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	created, err := s.remote.CreateLead(ctx, lead)
	return created, s.settle(ctx, "create", err)
}

// UpdateLead applies patch to a loaded lead and writes it remotely
func (s *Store) UpdateLead(ctx context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error) {
	current, ok := s.find(id)
	if !ok {
		return nil, ErrUnknownLead
	}
	patch.Apply(&current)
	updated, err := s.remote.UpdateLead(ctx, current)
	return updated, s.settle(ctx, "update", err)
}

// DeleteLead removes a lead remotely
func (s *Store) DeleteLead(ctx context.Context, id string) error {
	return s.settle(ctx, "delete", s.remote.DeleteLead(ctx, id))
}

// settle reloads after a mutation. A mutation error wins over a reload error.
func (s *Store) settle(ctx context.Context, op string, mutationErr error) error {
	reloadErr := s.Load(ctx)
	if mutationErr == nil {
		return reloadErr
	}
	s.logger.Error("Lead mutation failed", zap.String("operation", op), zap.Error(mutationErr))
	s.mu.Lock()
	s.state.Error = mutationErr.Error()
	s.mu.Unlock()
	return mutationErr
}

func (s *Store) find(id string) (domain.Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.state.Leads {
		if l.ID == id {
			return l, true
		}
	}
	return domain.Lead{}, false
}

// SetFilters replaces the active filters
func (s *Store) SetFilters(f Filters) {
	s.mu.Lock()
	s.state.Filters = f
	s.mu.Unlock()
}

// Filtered returns the loaded leads that pass the active filters
func (s *Store) Filtered() []domain.Lead {
	s.mu.RLock()
	f := s.state.Filters
	s.mu.RUnlock()
	return s.FilteredBy(f)
}

// FilteredBy applies f without touching the active filters, so views shared
// between requests can be read with per-request filters
func (s *Store) FilteredBy(f Filters) []domain.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Lead, 0, len(s.state.Leads))
	for _, l := range s.state.Leads {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out
}

// Snapshot copies the current state
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	st.Leads = append([]domain.Lead(nil), s.state.Leads...)
	return st
}
