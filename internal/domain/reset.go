package domain

import "time"

const (
	ResetStatusPending   = "pending"
	ResetStatusConfirmed = "confirmed"
)

// PasswordResetRequest models the two-step reset workflow: a pending request
// is created for a username, confirmed from the app, and consumed by the
// actual password reset. Only confirmed, unexpired requests authorize a
// reset.
type PasswordResetRequest struct {
	ID          string     `gorm:"size:36;primaryKey" json:"id"`
	Username    string     `gorm:"size:128;index;not null" json:"username"`
	Status      string     `gorm:"size:16;index;not null" json:"status"`
	ExpiresAt   time.Time  `gorm:"index;not null" json:"expires_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (PasswordResetRequest) TableName() string { return "password_reset_requests" }

func (r *PasswordResetRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
