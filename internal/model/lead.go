package model

import "time"

// LeadRecord is the relational copy of a lead kept per company.
// TwentyID is set once the lead is known to the remote CRM.
type LeadRecord struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CompanyID  uint      `json:"company_id" gorm:"index;not null"`
	Name       string    `json:"name" gorm:"type:varchar(200);not null"`
	Email      string    `json:"email" gorm:"type:varchar(150)"`
	Phone      string    `json:"phone" gorm:"type:varchar(50)"`
	Address    string    `json:"address" gorm:"type:varchar(255)"`
	City       string    `json:"city" gorm:"type:varchar(100)"`
	State      string    `json:"state" gorm:"type:varchar(50)"`
	ZipCode    string    `json:"zip_code" gorm:"type:varchar(20)"`
	Status     string    `json:"status" gorm:"type:varchar(30);not null;default:'new'"`
	Source     string    `json:"source" gorm:"type:varchar(50)"`
	Notes      string    `json:"notes" gorm:"type:text"`
	AssignedTo string    `json:"assigned_to" gorm:"type:varchar(150)"`
	TwentyID   *string   `json:"twenty_id,omitempty" gorm:"type:varchar(64);index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName keeps the table name aligned with the relational schema
func (LeadRecord) TableName() string { return "leads" }
