package domain

import "time"

// WebsiteSession is a server-side session row identified by an opaque random
// token. There is no renewal; a new login issues a new token.
type WebsiteSession struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SessionToken  string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	WebsiteUserID uint      `gorm:"index;not null" json:"website_user_id"`
	AdminUserID   uint      `gorm:"index;not null" json:"admin_user_id"`
	ExpiresAt     time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func (WebsiteSession) TableName() string { return "website_sessions" }

func (s *WebsiteSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
