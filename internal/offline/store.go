package offline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"spartan-crm/internal/domain"
)

var (
	ErrNotFound          = errors.New("offline: lead not found")
	ErrInvalidSyncStatus = errors.New("offline: lead sync status must be synced, pending or error")
	ErrMissingID         = errors.New("offline: lead id is required")
)

// Store is the local lead cache the field agent works against while offline.
// Every operation on a single record is atomic.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Lead, error)
	// Put inserts or replaces a lead
	Put(ctx context.Context, lead domain.Lead) error
	// Update applies patch to an existing lead and returns the result
	Update(ctx context.Context, id string, patch domain.LeadPatch) (*domain.Lead, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Lead, error)
	ListBySyncStatus(ctx context.Context, statuses ...domain.SyncStatus) ([]domain.Lead, error)
	// FindByName matches on NameKey, so lookups ignore case and spacing
	FindByName(ctx context.Context, name string) ([]domain.Lead, error)
}

// NameKey is the derived index key for a lead name. The stored name keeps
// its original casing.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func validate(l domain.Lead) error {
	if l.ID == "" {
		return ErrMissingID
	}
	if !l.SyncStatus.Valid() {
		return fmt.Errorf("%w: got %q", ErrInvalidSyncStatus, l.SyncStatus)
	}
	return nil
}

// sortLeads orders by creation time, then id
func sortLeads(leads []domain.Lead) {
	sort.Slice(leads, func(i, j int) bool {
		if !leads[i].CreatedAt.Equal(leads[j].CreatedAt) {
			return leads[i].CreatedAt.Before(leads[j].CreatedAt)
		}
		return leads[i].ID < leads[j].ID
	})
}
