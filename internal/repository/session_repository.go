package repository

import (
	"context"
	"errors"
	"time"

	"github.com/roomcast/roomcast-backend/internal/domain"
	"github.com/roomcast/roomcast-backend/internal/observability"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(s *domain.WebsiteSession) error
	FindByToken(token string) (*domain.WebsiteSession, error)
	DeleteByToken(token string) error
	DeleteByAdminUserID(adminUserID uint) error
	CleanupExpired(now time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(s *domain.WebsiteSession) error {
	err := r.db.Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindByToken(token string) (*domain.WebsiteSession, error) {
	var s domain.WebsiteSession
	err := r.db.Where("session_token = ?", token).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_token", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_token", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_token", "success")
	return &s, nil
}

// DeleteByToken is idempotent: deleting a token that has no row is still a
// success, so logout can never fail on a stale cookie.
func (r *GormSessionRepository) DeleteByToken(token string) error {
	err := r.db.Where("session_token = ?", token).Delete(&domain.WebsiteSession{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_token", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_token", "success")
	return nil
}

func (r *GormSessionRepository) DeleteByAdminUserID(adminUserID uint) error {
	err := r.db.Where("admin_user_id = ?", adminUserID).Delete(&domain.WebsiteSession{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_admin_user_id", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_admin_user_id", "success")
	return nil
}

func (r *GormSessionRepository) CleanupExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ?", now).Delete(&domain.WebsiteSession{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
