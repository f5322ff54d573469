package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"spartan-crm/internal/model"
	"spartan-crm/prometheus"
)

// Label columns a mobile account can claim once per company
const (
	LabelSalesRep  = "sales_rep"
	LabelCanvasser = "canvasser"
)

// MobileUsers is the gorm-backed field account repository
type MobileUsers struct {
	db *gorm.DB
}

func NewMobileUsers(db *gorm.DB) *MobileUsers {
	return &MobileUsers{db: db}
}

// List returns every account, or only those of companyID when it is non-zero
func (r *MobileUsers) List(ctx context.Context, companyID uint) ([]model.MobileUser, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var users []model.MobileUser
	q := r.db.WithContext(ctx).Order("id")
	if companyID != 0 {
		q = q.Where("company_id = ?", companyID)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *MobileUsers) Get(ctx context.Context, id uint) (*model.MobileUser, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.MobileUser
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByIdentity returns an account other than excludeID holding username or email
func (r *MobileUsers) FindByIdentity(ctx context.Context, username, email string, excludeID uint) (*model.MobileUser, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.MobileUser
	q := r.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?) OR LOWER(email) = LOWER(?)", username, email)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByLabel returns the account of companyID that already claims label in
// column (LabelSalesRep or LabelCanvasser)
func (r *MobileUsers) FindByLabel(ctx context.Context, companyID uint, column, label string, excludeID uint) (*model.MobileUser, error) {
	if column != LabelSalesRep && column != LabelCanvasser {
		return nil, fmt.Errorf("unsupported label column %q", column)
	}
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.MobileUser
	q := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Where(fmt.Sprintf("LOWER(%s) = LOWER(?)", column), strings.TrimSpace(label))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *MobileUsers) Create(ctx context.Context, user *model.MobileUser) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *MobileUsers) Update(ctx context.Context, user *model.MobileUser) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	return translate(r.db.WithContext(ctx).Save(user).Error)
}

func (r *MobileUsers) Delete(ctx context.Context, id uint) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	return deleted(r.db.WithContext(ctx).Delete(&model.MobileUser{}, id))
}
