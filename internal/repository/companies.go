package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"spartan-crm/internal/model"
	"spartan-crm/prometheus"
)

// Companies is the gorm-backed tenant repository
type Companies struct {
	db *gorm.DB
}

func NewCompanies(db *gorm.DB) *Companies {
	return &Companies{db: db}
}

func (r *Companies) List(ctx context.Context) ([]model.Company, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var companies []model.Company
	if err := r.db.WithContext(ctx).Order("name").Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *Companies) Get(ctx context.Context, id uint) (*model.Company, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var company model.Company
	if err := r.db.WithContext(ctx).First(&company, id).Error; err != nil {
		return nil, translate(err)
	}
	return &company, nil
}

// NameTaken reports whether another company already uses name
func (r *Companies) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var count int64
	q := r.db.WithContext(ctx).Model(&model.Company{}).Where("LOWER(name) = LOWER(?)", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Companies) Create(ctx context.Context, company *model.Company) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return translate(r.db.WithContext(ctx).Create(company).Error)
}

func (r *Companies) Update(ctx context.Context, company *model.Company) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	return translate(r.db.WithContext(ctx).Save(company).Error)
}

func (r *Companies) Delete(ctx context.Context, id uint) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	return deleted(r.db.WithContext(ctx).Delete(&model.Company{}, id))
}
