package domain

import (
	"math"
	"strings"
	"time"
)

// Status is the local six-value pipeline stage
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusProposal  Status = "proposal"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
)

// Statuses lists every local pipeline status in funnel order
var Statuses = []Status{StatusNew, StatusContacted, StatusQualified, StatusProposal, StatusWon, StatusLost}

// Valid reports whether s is one of the local statuses
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Source is the acquisition channel of a lead
type Source string

const (
	SourceDoorKnocking Source = "door_knocking"
	SourceReferral     Source = "referral"
	SourceWebsite      Source = "website"
	SourceGoogleAds    Source = "google_ads"
	SourceFacebook     Source = "facebook"
	SourceYardSign     Source = "yard_sign"
	SourceStormCanvass Source = "storm_canvass"
	SourceOther        Source = "other"
)

var sources = []Source{
	SourceDoorKnocking, SourceReferral, SourceWebsite, SourceGoogleAds,
	SourceFacebook, SourceYardSign, SourceStormCanvass, SourceOther,
}

// Valid reports whether s is a known source. The empty source is allowed.
func (s Source) Valid() bool {
	if s == "" {
		return true
	}
	for _, v := range sources {
		if s == v {
			return true
		}
	}
	return false
}

// Medium is the marketing medium of a lead
type Medium string

const (
	MediumOrganic  Medium = "organic"
	MediumPaid     Medium = "paid"
	MediumDirect   Medium = "direct"
	MediumReferral Medium = "referral"
	MediumSocial   Medium = "social"
	MediumEmail    Medium = "email"
	MediumOther    Medium = "other"
)

var mediums = []Medium{MediumOrganic, MediumPaid, MediumDirect, MediumReferral, MediumSocial, MediumEmail, MediumOther}

// Valid reports whether m is a known medium. The empty medium is allowed.
func (m Medium) Valid() bool {
	if m == "" {
		return true
	}
	for _, v := range mediums {
		if m == v {
			return true
		}
	}
	return false
}

// PropertyType distinguishes residential from commercial roofs
type PropertyType string

const (
	PropertyResidential PropertyType = "residential"
	PropertyCommercial  PropertyType = "commercial"
)

// SyncStatus tracks a lead's reconciliation state with the remote CRM
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncPending SyncStatus = "pending"
	SyncError   SyncStatus = "error"
)

// Valid reports whether s is one of the three sync states
func (s SyncStatus) Valid() bool {
	return s == SyncSynced || s == SyncPending || s == SyncError
}

// Lead is the internal lead shape shared by the offline store, the sync
// engine and the dashboard view. Status and Stage are two separate
// vocabularies; Stage is whatever the remote CRM last reported.
type Lead struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Phone          string       `json:"phone"`
	Email          string       `json:"email"`
	Address        string       `json:"address"`
	City           string       `json:"city"`
	State          string       `json:"state"`
	ZipCode        string       `json:"zipCode"`
	Source         Source       `json:"source,omitempty"`
	Medium         Medium       `json:"medium,omitempty"`
	Status         Status       `json:"status"`
	Stage          string       `json:"stage,omitempty"`
	PropertyType   PropertyType `json:"propertyType,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	SalesRep       string       `json:"salesRep,omitempty"`
	Canvasser      string       `json:"canvasser,omitempty"`
	EstimatedValue float64      `json:"estimatedValue"`
	NextFollowUp   *time.Time   `json:"nextFollowUp,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	SyncStatus     SyncStatus   `json:"syncStatus"`
	LastSyncedAt   *time.Time   `json:"lastSyncedAt,omitempty"`
	SyncError      string       `json:"syncError,omitempty"`
}

// LeadPatch is a partial update. Nil fields are left unchanged.
type LeadPatch struct {
	Name           *string       `json:"name,omitempty"`
	Phone          *string       `json:"phone,omitempty"`
	Email          *string       `json:"email,omitempty"`
	Address        *string       `json:"address,omitempty"`
	City           *string       `json:"city,omitempty"`
	State          *string       `json:"state,omitempty"`
	ZipCode        *string       `json:"zipCode,omitempty"`
	Source         *Source       `json:"source,omitempty"`
	Medium         *Medium       `json:"medium,omitempty"`
	Status         *Status       `json:"status,omitempty"`
	PropertyType   *PropertyType `json:"propertyType,omitempty"`
	Notes          *string       `json:"notes,omitempty"`
	SalesRep       *string       `json:"salesRep,omitempty"`
	Canvasser      *string       `json:"canvasser,omitempty"`
	EstimatedValue *float64      `json:"estimatedValue,omitempty"`
	NextFollowUp   *time.Time    `json:"nextFollowUp,omitempty"`
	SyncStatus     *SyncStatus   `json:"syncStatus,omitempty"`
	LastSyncedAt   *time.Time    `json:"lastSyncedAt,omitempty"`
	SyncError      *string       `json:"syncError,omitempty"`
	UpdatedAt      *time.Time    `json:"updatedAt,omitempty"`
}

// Apply copies every non-nil field of p onto l
func (p LeadPatch) Apply(l *Lead) {
	setString(&l.Name, p.Name)
	setString(&l.Phone, p.Phone)
	setString(&l.Email, p.Email)
	setString(&l.Address, p.Address)
	setString(&l.City, p.City)
	setString(&l.State, p.State)
	setString(&l.ZipCode, p.ZipCode)
	setString(&l.Notes, p.Notes)
	setString(&l.SalesRep, p.SalesRep)
	setString(&l.Canvasser, p.Canvasser)
	setString(&l.SyncError, p.SyncError)
	if p.Source != nil {
		l.Source = *p.Source
	}
	if p.Medium != nil {
		l.Medium = *p.Medium
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if p.PropertyType != nil {
		l.PropertyType = *p.PropertyType
	}
	if p.EstimatedValue != nil {
		l.EstimatedValue = *p.EstimatedValue
	}
	if p.NextFollowUp != nil {
		t := *p.NextFollowUp
		l.NextFollowUp = &t
	}
	if p.SyncStatus != nil {
		l.SyncStatus = *p.SyncStatus
	}
	if p.LastSyncedAt != nil {
		t := *p.LastSyncedAt
		l.LastSyncedAt = &t
	}
	if p.UpdatedAt != nil {
		l.UpdatedAt = *p.UpdatedAt
	}
}

// ContentChanged reports whether the patch touches any field the remote CRM stores
func (p LeadPatch) ContentChanged() bool {
	return p.Name != nil || p.Phone != nil || p.Email != nil || p.Address != nil ||
		p.City != nil || p.State != nil || p.ZipCode != nil || p.Source != nil ||
		p.Medium != nil || p.Status != nil || p.PropertyType != nil || p.Notes != nil ||
		p.SalesRep != nil || p.Canvasser != nil || p.EstimatedValue != nil || p.NextFollowUp != nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

const microsPerDollar = 1_000_000

// MicrosToDollars converts the remote integer micros to local dollars
func MicrosToDollars(micros int64) float64 {
	return float64(micros) / microsPerDollar
}

// DollarsToMicros converts local dollars to remote integer micros
func DollarsToMicros(dollars float64) int64 {
	return int64(math.Round(dollars * microsPerDollar))
}

// Searchable returns the lowercased text the free-text search matches against
func (l Lead) Searchable() []string {
	return []string{
		strings.ToLower(l.Name),
		strings.ToLower(l.Email),
		strings.ToLower(l.Phone),
		strings.ToLower(l.Address),
		strings.ToLower(l.City),
		strings.ToLower(l.Notes),
	}
}
