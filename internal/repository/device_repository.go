package repository

import (
	"context"
	"time"

	"github.com/roomcast/roomcast-backend/internal/domain"
	"github.com/roomcast/roomcast-backend/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository interface {
	Upsert(s *domain.DeviceSession) (*domain.DeviceSession, error)
	Deactivate(adminUserID uint, deviceID string) (bool, error)
	ListActive(adminUserID uint) ([]domain.DeviceSession, error)
	DeleteByAdminUserID(adminUserID uint) error
}

type GormDeviceRepository struct{ db *gorm.DB }

func NewDeviceRepository(db *gorm.DB) DeviceRepository { return &GormDeviceRepository{db: db} }

// Upsert inserts or refreshes the session keyed by (admin_user_id,
// device_id). A logged-out device that logs in again is reactivated with a
// fresh last_active; the original session_id survives the update.
func (r *GormDeviceRepository) Upsert(s *domain.DeviceSession) (*domain.DeviceSession, error) {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "admin_user_id"}, {Name: "device_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"device_name": s.DeviceName,
			"last_active": s.LastActive,
			"is_active":   true,
			"updated_at":  time.Now().UTC(),
		}),
	}).Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "device_session", "upsert", "error")
		return nil, err
	}

	var stored domain.DeviceSession
	if err := r.db.Where("admin_user_id = ? AND device_id = ?", s.AdminUserID, s.DeviceID).
		First(&stored).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "device_session", "upsert", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "device_session", "upsert", "success")
	return &stored, nil
}

// Deactivate marks the session inactive. A missing row is reported via the
// bool, not an error; device logout treats it as a no-op.
func (r *GormDeviceRepository) Deactivate(adminUserID uint, deviceID string) (bool, error) {
	res := r.db.Model(&domain.DeviceSession{}).
		Where("admin_user_id = ? AND device_id = ? AND is_active", adminUserID, deviceID).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "device_session", "deactivate", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "device_session", "deactivate", "not_found")
		return false, nil
	}
	observability.RecordRepositoryOperation(context.Background(), "device_session", "deactivate", "success")
	return true, nil
}

func (r *GormDeviceRepository) ListActive(adminUserID uint) ([]domain.DeviceSession, error) {
	var sessions []domain.DeviceSession
	err := r.db.Where("admin_user_id = ? AND is_active", adminUserID).
		Order("last_active DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "device_session", "list_active", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(context.Background(), "device_session", "list_active", "success")
	return sessions, nil
}

func (r *GormDeviceRepository) DeleteByAdminUserID(adminUserID uint) error {
	err := r.db.Where("admin_user_id = ?", adminUserID).Delete(&domain.DeviceSession{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "device_session", "delete_by_admin_user_id", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "device_session", "delete_by_admin_user_id", "success")
	return nil
}
