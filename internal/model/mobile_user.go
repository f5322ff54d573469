package model

import "time"

// Mobile user roles
const (
	MobileRoleAdmin          = "admin"
	MobileRoleManager        = "manager"
	MobileRoleSalesRep       = "sales_rep"
	MobileRoleCanvasser      = "canvasser"
	MobileRoleOfficeManager  = "office_manager"
	MobileRoleProjectManager = "project_manager"
)

// MobileRoles lists every role a mobile account may hold
var MobileRoles = []string{
	MobileRoleAdmin,
	MobileRoleManager,
	MobileRoleSalesRep,
	MobileRoleCanvasser,
	MobileRoleOfficeManager,
	MobileRoleProjectManager,
}

// MobileUser is a field-technician or office account scoped to one company.
// SalesRep and Canvasser link the account to a remote CRM label; each label
// may be claimed by at most one account per company.
type MobileUser struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Username       string    `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	Email          string    `json:"email" gorm:"type:varchar(150);uniqueIndex;not null"`
	PasswordHash   string    `json:"-" gorm:"type:varchar(255);not null"`
	Role           string    `json:"role" gorm:"type:varchar(50);not null"`
	SalesRep       string    `json:"sales_rep,omitempty" gorm:"type:varchar(150);uniqueIndex:idx_mobile_company_sales_rep,where:sales_rep <> ''"`
	Canvasser      string    `json:"canvasser,omitempty" gorm:"type:varchar(150);uniqueIndex:idx_mobile_company_canvasser,where:canvasser <> ''"`
	OfficeManager  string    `json:"office_manager,omitempty" gorm:"type:varchar(150)"`
	ProjectManager string    `json:"project_manager,omitempty" gorm:"type:varchar(150)"`
	CompanyID      uint      `json:"company_id" gorm:"index;not null;uniqueIndex:idx_mobile_company_sales_rep;uniqueIndex:idx_mobile_company_canvasser"`
	IsActive       bool      `json:"is_active" gorm:"default:true"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
