package repository

import (
	"context"
	"errors"
	"time"

	"github.com/roomcast/roomcast-backend/internal/domain"
	"github.com/roomcast/roomcast-backend/internal/observability"

	"gorm.io/gorm"
)

var ErrResetRequestNotFound = errors.New("password reset request not found")

type ResetRepository interface {
	Replace(req *domain.PasswordResetRequest) error
	FindByID(id string) (*domain.PasswordResetRequest, error)
	FindValidPending(username string, now time.Time) (*domain.PasswordResetRequest, error)
	FindConfirmed(username string, now time.Time) (*domain.PasswordResetRequest, error)
	Confirm(id string, now time.Time) error
	Consume(id string) error
	ListPending(now time.Time) ([]domain.PasswordResetRequest, error)
	DeleteByUsername(username string) error
	CleanupExpired(now time.Time) (int64, error)
}

type GormResetRepository struct{ db *gorm.DB }

func NewResetRepository(db *gorm.DB) ResetRepository {
	return &GormResetRepository{db: db}
}

// Replace drops any earlier request for the same username before inserting,
// so at most one reset request per account is live at a time.
func (r *GormResetRepository) Replace(req *domain.PasswordResetRequest) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("username = ?", req.Username).
			Delete(&domain.PasswordResetRequest{}).Error; err != nil {
			return err
		}
		return tx.Create(req).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "replace", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "replace", "success")
	return nil
}

func (r *GormResetRepository) FindByID(id string) (*domain.PasswordResetRequest, error) {
	var req domain.PasswordResetRequest
	err := r.db.Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "find_by_id", "not_found")
			return nil, ErrResetRequestNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "find_by_id", "success")
	return &req, nil
}

func (r *GormResetRepository) FindValidPending(username string, now time.Time) (*domain.PasswordResetRequest, error) {
	return r.findByStatus(username, domain.ResetStatusPending, now)
}

func (r *GormResetRepository) FindConfirmed(username string, now time.Time) (*domain.PasswordResetRequest, error) {
	return r.findByStatus(username, domain.ResetStatusConfirmed, now)
}

func (r *GormResetRepository) findByStatus(username, status string, now time.Time) (*domain.PasswordResetRequest, error) {
	var req domain.PasswordResetRequest
	err := r.db.Where("username = ? AND status = ? AND expires_at > ?", username, status, now).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "find_"+status, "not_found")
			return nil, ErrResetRequestNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "find_"+status, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "find_"+status, "success")
	return &req, nil
}

// Confirm flips a live pending request to confirmed. Expired or already
// consumed requests are not eligible.
func (r *GormResetRepository) Confirm(id string, now time.Time) error {
	res := r.db.Model(&domain.PasswordResetRequest{}).
		Where("id = ? AND status = ? AND expires_at > ?", id, domain.ResetStatusPending, now).
		Updates(map[string]any{"status": domain.ResetStatusConfirmed, "confirmed_at": now})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "confirm", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "confirm", "not_found")
		return ErrResetRequestNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "confirm", "success")
	return nil
}

// Consume deletes the request after a successful password change so the
// confirmation cannot be replayed.
func (r *GormResetRepository) Consume(id string) error {
	err := r.db.Where("id = ?", id).Delete(&domain.PasswordResetRequest{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "consume", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "consume", "success")
	return nil
}

func (r *GormResetRepository) ListPending(now time.Time) ([]domain.PasswordResetRequest, error) {
	var reqs []domain.PasswordResetRequest
	err := r.db.Where("status = ? AND expires_at > ?", domain.ResetStatusPending, now).
		Order("created_at DESC").
		Find(&reqs).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "list_pending", "error")
		return reqs, err
	}
	observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "list_pending", "success")
	return reqs, nil
}

func (r *GormResetRepository) DeleteByUsername(username string) error {
	err := r.db.Where("username = ?", username).Delete(&domain.PasswordResetRequest{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "delete_by_username", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "delete_by_username", "success")
	return nil
}

func (r *GormResetRepository) CleanupExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ?", now).Delete(&domain.PasswordResetRequest{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "cleanup", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "password_reset_request", "cleanup", "success")
	return res.RowsAffected, nil
}
