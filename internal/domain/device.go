package domain

import "time"

// DeviceSession tracks one app installation per admin user. It is upserted
// on every device login and marked inactive on device logout; several
// devices may be active for the same admin user at once.
type DeviceSession struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	SessionID   string    `gorm:"size:36;uniqueIndex;not null" json:"session_id"`
	AdminUserID uint      `gorm:"uniqueIndex:uidx_device_sessions_device;not null" json:"admin_user_id"`
	DeviceID    string    `gorm:"size:64;uniqueIndex:uidx_device_sessions_device;not null" json:"device_id"`
	DeviceName  string    `gorm:"size:128" json:"device_name"`
	LastActive  time.Time `gorm:"index;not null" json:"last_active"`
	IsActive    bool      `gorm:"index;not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (DeviceSession) TableName() string { return "device_sessions" }
