package model

import "time"

// Company is the tenant record. Both API keys are stored encrypted.
type Company struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"type:varchar(150);uniqueIndex;not null"`
	ContactName  string    `json:"contact_name" gorm:"type:varchar(150)"`
	Email        string    `json:"email" gorm:"type:varchar(150)"`
	Phone        string    `json:"phone" gorm:"type:varchar(50)"`
	Address      string    `json:"address" gorm:"type:varchar(255)"`
	City         string    `json:"city" gorm:"type:varchar(100)"`
	State        string    `json:"state" gorm:"type:varchar(50)"`
	ZipCode      string    `json:"zip_code" gorm:"type:varchar(20)"`
	TwentyAPIURL string    `json:"twenty_api_url" gorm:"column:twenty_api_url;type:varchar(255)"`
	TwentyAPIKey string    `json:"-" gorm:"column:twenty_api_key;type:text"`
	SupabaseURL  string    `json:"supabase_url,omitempty" gorm:"column:supabase_url;type:varchar(255)"`
	SupabaseKey  string    `json:"-" gorm:"column:supabase_key;type:text"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
