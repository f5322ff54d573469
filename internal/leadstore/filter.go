package leadstore

import (
	"strings"
	"time"

	"spartan-crm/internal/domain"
)

// Filters narrow the current view. Zero-valued fields match every lead;
// the set fields are AND-combined.
type Filters struct {
	Statuses     []domain.Status     `json:"statuses,omitempty"`
	Sources      []domain.Source     `json:"sources,omitempty"`
	PropertyType domain.PropertyType `json:"propertyType,omitempty"`
	// From and To bound CreatedAt, both inclusive
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
	// AssignedTo matches the sales rep or canvasser label
	AssignedTo   string              `json:"assignedTo,omitempty"`
	SyncStatuses []domain.SyncStatus `json:"syncStatuses,omitempty"`
	// Search is a case-insensitive substring over name, email, phone, address, city and notes
	Search string `json:"search,omitempty"`
}

// Match reports whether l passes every set filter
func (f Filters) Match(l domain.Lead) bool {
	if len(f.Statuses) > 0 && !contains(f.Statuses, l.Status) {
		return false
	}
	if len(f.Sources) > 0 && !contains(f.Sources, l.Source) {
		return false
	}
	if f.PropertyType != "" && l.PropertyType != f.PropertyType {
		return false
	}
	if f.From != nil && l.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && l.CreatedAt.After(*f.To) {
		return false
	}
	if f.AssignedTo != "" &&
		!strings.EqualFold(l.SalesRep, f.AssignedTo) &&
		!strings.EqualFold(l.Canvasser, f.AssignedTo) {
		return false
	}
	if len(f.SyncStatuses) > 0 && !contains(f.SyncStatuses, l.SyncStatus) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hit := false
		for _, field := range l.Searchable() {
			if strings.Contains(field, q) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
