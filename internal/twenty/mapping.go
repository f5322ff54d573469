package twenty

import (
	"math"
	"strings"
	"time"

	"spartan-crm/internal/domain"
)

const currencyUSD = "USD"

// StageForStatus maps a local status onto the remote pipeline stage vocabulary
func StageForStatus(s domain.Status) string {
	return strings.ToUpper(string(s))
}

// StatusForStage maps a remote stage back to a local status. Stages outside
// the six local values become StatusNew; callers keep the raw stage separately.
func StatusForStage(stage string) domain.Status {
	s := domain.Status(strings.ToLower(strings.TrimSpace(stage)))
	if s.Valid() {
		return s
	}
	return domain.StatusNew
}

type remotePhones struct {
	PrimaryPhoneNumber string `json:"primaryPhoneNumber"`
}

type remoteEmails struct {
	PrimaryEmail string `json:"primaryEmail"`
}

type remoteAddress struct {
	AddressStreet1  string `json:"addressStreet1"`
	AddressCity     string `json:"addressCity"`
	AddressState    string `json:"addressState"`
	AddressPostcode string `json:"addressPostcode"`
}

type remoteCurrency struct {
	AmountMicros *float64 `json:"amountMicros"`
	CurrencyCode string   `json:"currencyCode"`
}

type remoteLead struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Phones       *remotePhones   `json:"phones"`
	Emails       *remoteEmails   `json:"emails"`
	Address      *remoteAddress  `json:"address"`
	Source       string          `json:"source"`
	Medium       string          `json:"medium"`
	Stage        string          `json:"stage"`
	PropertyType string          `json:"propertyType"`
	Notes        string          `json:"notes"`
	SalesRep     string          `json:"salesRep"`
	Canvasser    string          `json:"canvasser"`
	EstValue     *remoteCurrency `json:"estValue"`
	NextFollowUp *time.Time      `json:"nextFollowUp"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// toDomain converts a remote record into the internal lead shape.
// Sync metadata is left for the caller to set.
func (r remoteLead) toDomain() domain.Lead {
	l := domain.Lead{
		ID:           r.ID,
		Name:         r.Name,
		Source:       domain.Source(strings.ToLower(r.Source)),
		Medium:       domain.Medium(strings.ToLower(r.Medium)),
		Status:       StatusForStage(r.Stage),
		Stage:        r.Stage,
		PropertyType: domain.PropertyType(strings.ToLower(r.PropertyType)),
		Notes:        r.Notes,
		SalesRep:     r.SalesRep,
		Canvasser:    r.Canvasser,
		NextFollowUp: r.NextFollowUp,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Phones != nil {
		l.Phone = r.Phones.PrimaryPhoneNumber
	}
	if r.Emails != nil {
		l.Email = r.Emails.PrimaryEmail
	}
	if r.Address != nil {
		l.Address = r.Address.AddressStreet1
		l.City = r.Address.AddressCity
		l.State = r.Address.AddressState
		l.ZipCode = r.Address.AddressPostcode
	}
	if r.EstValue != nil && r.EstValue.AmountMicros != nil {
		l.EstimatedValue = domain.MicrosToDollars(int64(math.Round(*r.EstValue.AmountMicros)))
	}
	if !l.Source.Valid() {
		l.Source = domain.SourceOther
	}
	if !l.Medium.Valid() {
		l.Medium = domain.MediumOther
	}
	return l
}

// stageFor keeps the lead's remote stage while it still maps to the lead's
// status. Stages without a local status collapse to new on read and must not
// be overwritten with NEW on the next write.
func stageFor(l domain.Lead) string {
	if l.Stage != "" && StatusForStage(l.Stage) == l.Status {
		return l.Stage
	}
	return StageForStatus(l.Status)
}

// leadInput flattens a full internal lead into the remote create/update input
func leadInput(l domain.Lead) map[string]any {
	data := map[string]any{
		"name":      l.Name,
		"phones":    map[string]any{"primaryPhoneNumber": l.Phone},
		"emails":    map[string]any{"primaryEmail": l.Email},
		"address":   addressInput(l.Address, l.City, l.State, l.ZipCode),
		"stage":     stageFor(l),
		"estValue":  currencyInput(l.EstimatedValue),
		"notes":     l.Notes,
		"salesRep":  l.SalesRep,
		"canvasser": l.Canvasser,
	}
	if l.Source != "" {
		data["source"] = strings.ToUpper(string(l.Source))
	}
	if l.Medium != "" {
		data["medium"] = strings.ToUpper(string(l.Medium))
	}
	if l.PropertyType != "" {
		data["propertyType"] = strings.ToUpper(string(l.PropertyType))
	}
	if l.NextFollowUp != nil {
		data["nextFollowUp"] = l.NextFollowUp.UTC().Format(time.RFC3339)
	}
	return data
}

// patchInput flattens only the fields set on p. Any address component
// sends the whole address object, filled from current.
func patchInput(p domain.LeadPatch, current domain.Lead) map[string]any {
	data := map[string]any{}
	if p.Name != nil {
		data["name"] = *p.Name
	}
	if p.Phone != nil {
		data["phones"] = map[string]any{"primaryPhoneNumber": *p.Phone}
	}
	if p.Email != nil {
		data["emails"] = map[string]any{"primaryEmail": *p.Email}
	}
	if p.Address != nil || p.City != nil || p.State != nil || p.ZipCode != nil {
		merged := current
		p.Apply(&merged)
		data["address"] = addressInput(merged.Address, merged.City, merged.State, merged.ZipCode)
	}
	if p.Status != nil {
		next := current
		next.Status = *p.Status
		if stage := stageFor(next); stage != current.Stage {
			data["stage"] = stage
		}
	}
	if p.Source != nil {
		data["source"] = strings.ToUpper(string(*p.Source))
	}
	if p.Medium != nil {
		data["medium"] = strings.ToUpper(string(*p.Medium))
	}
	if p.PropertyType != nil {
		data["propertyType"] = strings.ToUpper(string(*p.PropertyType))
	}
	if p.Notes != nil {
		data["notes"] = *p.Notes
	}
	if p.SalesRep != nil {
		data["salesRep"] = *p.SalesRep
	}
	if p.Canvasser != nil {
		data["canvasser"] = *p.Canvasser
	}
	if p.EstimatedValue != nil {
		data["estValue"] = currencyInput(*p.EstimatedValue)
	}
	if p.NextFollowUp != nil {
		data["nextFollowUp"] = p.NextFollowUp.UTC().Format(time.RFC3339)
	}
	return data
}

func addressInput(street, city, state, zip string) map[string]any {
	return map[string]any{
		"addressStreet1":  street,
		"addressCity":     city,
		"addressState":    state,
		"addressPostcode": zip,
	}
}

func currencyInput(dollars float64) map[string]any {
	return map[string]any{
		"amountMicros": domain.DollarsToMicros(dollars),
		"currencyCode": currencyUSD,
	}
}
