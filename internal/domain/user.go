package domain

import "time"

// AdminUser is the tenant-owning account created from the app side. All
// statistics and sessions hang off its ID.
type AdminUser struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"size:128;uniqueIndex;not null" json:"username"`
	PasswordHash string     `gorm:"size:128;not null" json:"-"`
	DeviceID     string     `gorm:"size:64;index" json:"device_id,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (AdminUser) TableName() string { return "admin_users" }

// WebsiteUser is the dashboard login identity paired 1:1 with an AdminUser.
// It is created in the same transaction as the admin user.
type WebsiteUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:128;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	AdminUserID  uint      `gorm:"uniqueIndex;not null" json:"admin_user_id"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (WebsiteUser) TableName() string { return "website_users" }
