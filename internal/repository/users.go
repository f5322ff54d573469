package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"spartan-crm/internal/model"
	"spartan-crm/prometheus"
)

// Users is the gorm-backed web login repository
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// List returns every user, or only those of companyID when it is non-zero
func (r *Users) List(ctx context.Context, companyID uint) ([]model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var users []model.User
	q := r.db.WithContext(ctx).Order("id")
	if companyID != 0 {
		q = q.Where("company_id = ?", companyID)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *Users) Get(ctx context.Context, id uint) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *Users) EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var count int64
	q := r.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", strings.ToLower(email))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Users) Create(ctx context.Context, user *model.User) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	user.Email = strings.ToLower(user.Email)
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *Users) Update(ctx context.Context, user *model.User) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	user.Email = strings.ToLower(user.Email)
	return translate(r.db.WithContext(ctx).Save(user).Error)
}

// TouchLastLogin stamps a successful login
func (r *Users) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	return translate(r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("last_login", at).Error)
}

func (r *Users) Delete(ctx context.Context, id uint) error {
	defer prometheus.TrackDBOperation("delete")(time.Now())
	return deleted(r.db.WithContext(ctx).Delete(&model.User{}, id))
}
