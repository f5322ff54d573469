package model

import (
	"time"

	"github.com/lib/pq"
)

// Web login roles
const (
	UserRoleOwner       = "owner"
	UserRoleManager     = "manager"
	UserRoleSalesperson = "salesperson"
)

// User is a web dashboard login account.
type User struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	CompanyID    uint           `json:"company_id" gorm:"index;not null"`
	Name         string         `json:"name" gorm:"type:varchar(150);not null"`
	Email        string         `json:"email" gorm:"type:varchar(150);uniqueIndex;not null"`
	PasswordHash string         `json:"-" gorm:"type:varchar(255);not null"`
	Role         string         `json:"role" gorm:"type:varchar(50);not null;default:'salesperson'"`
	Permissions  pq.StringArray `json:"permissions" gorm:"type:text[]"`
	IsActive     bool           `json:"is_active" gorm:"default:true"`
	LastLogin    *time.Time     `json:"last_login,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
