package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"spartan-crm/internal/model"
	"spartan-crm/prometheus"
)

// LeadQuery narrows Leads.List. Empty fields match everything.
type LeadQuery struct {
	Status     string
	AssignedTo string
	Search     string
}

// Leads is the gorm-backed relational lead repository. Every call is
// scoped to one company.
type Leads struct {
	db *gorm.DB
}

func NewLeads(db *gorm.DB) *Leads {
	return &Leads{db: db}
}

func (r *Leads) List(ctx context.Context, companyID uint, query LeadQuery) ([]model.LeadRecord, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if query.Status != "" {
		q = q.Where("status = ?", query.Status)
	}
	if query.AssignedTo != "" {
		q = q.Where("assigned_to = ?", query.AssignedTo)
	}
	if s := strings.TrimSpace(query.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ? OR LOWER(city) LIKE ?", like, like, like, like)
	}

	var leads []model.LeadRecord
	if err := q.Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *Leads) Get(ctx context.Context, companyID, id uint) (*model.LeadRecord, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var lead model.LeadRecord
	err := r.db.WithContext(ctx).Where("company_id = ?", companyID).First(&lead, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &lead, nil
}

func (r *Leads) Create(ctx context.Context, lead *model.LeadRecord) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return translate(r.db.WithContext(ctx).Create(lead).Error)
}

func (r *Leads) Update(ctx context.Context, lead *model.LeadRecord) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	return translate(r.db.WithContext(ctx).Save(lead).Error)
}

func (r *Leads) Delete(ctx context.Context, companyID, id uint) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	return deleted(r.db.WithContext(ctx).Where("company_id = ?", companyID).Delete(&model.LeadRecord{}, id))
}
