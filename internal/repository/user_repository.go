package repository

import (
	"context"
	"errors"
	"time"

	"github.com/roomcast/roomcast-backend/internal/domain"
	"github.com/roomcast/roomcast-backend/internal/observability"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

type UserRepository interface {
	CreateWithWebsiteUser(admin *domain.AdminUser, website *domain.WebsiteUser) error
	FindAdminByID(id uint) (*domain.AdminUser, error)
	FindAdminByUsername(username string) (*domain.AdminUser, error)
	FindWebsiteByUsername(username string) (*domain.WebsiteUser, error)
	FindWebsiteByAdminID(adminUserID uint) (*domain.WebsiteUser, error)
	RecordAdminLogin(adminUserID uint, deviceID string) error
	UpdatePasswordByUsername(username, passwordHash string) error
	DeleteAdmin(adminUserID uint) error
	DeleteWebsiteByAdminID(adminUserID uint) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

// CreateWithWebsiteUser inserts the admin user and its paired website user
// in one transaction. The admin id is assigned inside the transaction and
// stamped onto the website user before its insert.
func (r *GormUserRepository) CreateWithWebsiteUser(admin *domain.AdminUser, website *domain.WebsiteUser) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(admin).Error; err != nil {
			return err
		}
		website.AdminUserID = admin.ID
		return tx.Create(website).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(context.Background(), "user", "create_with_website_user", "conflict")
			return ErrUsernameTaken
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "create_with_website_user", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create_with_website_user", "success")
	return nil
}

func (r *GormUserRepository) FindAdminByID(id uint) (*domain.AdminUser, error) {
	var u domain.AdminUser
	err := r.db.First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_admin_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_admin_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_admin_by_id", "success")
	return &u, nil
}

func (r *GormUserRepository) FindAdminByUsername(username string) (*domain.AdminUser, error) {
	var u domain.AdminUser
	err := r.db.Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_admin_by_username", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_admin_by_username", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_admin_by_username", "success")
	return &u, nil
}

func (r *GormUserRepository) FindWebsiteByUsername(username string) (*domain.WebsiteUser, error) {
	var u domain.WebsiteUser
	err := r.db.Where("username = ?", username).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_website_by_username", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_website_by_username", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_website_by_username", "success")
	return &u, nil
}

func (r *GormUserRepository) FindWebsiteByAdminID(adminUserID uint) (*domain.WebsiteUser, error) {
	var u domain.WebsiteUser
	err := r.db.Where("admin_user_id = ?", adminUserID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_website_by_admin_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_website_by_admin_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_website_by_admin_id", "success")
	return &u, nil
}

// RecordAdminLogin bumps last_login and, when the device id is non-empty,
// remembers it as the admin's current device.
func (r *GormUserRepository) RecordAdminLogin(adminUserID uint, deviceID string) error {
	updates := map[string]any{"last_login": time.Now().UTC()}
	if deviceID != "" {
		updates["device_id"] = deviceID
	}
	err := r.db.Model(&domain.AdminUser{}).Where("id = ?", adminUserID).Updates(updates).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "record_admin_login", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "record_admin_login", "success")
	return nil
}

// UpdatePasswordByUsername updates the admin user's hash and mirrors it to
// the paired website user, which shares the same credentials.
func (r *GormUserRepository) UpdatePasswordByUsername(username, passwordHash string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var admin domain.AdminUser
		if err := tx.Where("username = ?", username).First(&admin).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := tx.Model(&domain.AdminUser{}).Where("id = ?", admin.ID).
			Update("password_hash", passwordHash).Error; err != nil {
			return err
		}
		return tx.Model(&domain.WebsiteUser{}).Where("admin_user_id = ?", admin.ID).
			Update("password_hash", passwordHash).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "update_password", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "user", "update_password", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "update_password", "success")
	return nil
}

func (r *GormUserRepository) DeleteAdmin(adminUserID uint) error {
	res := r.db.Where("id = ?", adminUserID).Delete(&domain.AdminUser{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "delete_admin", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "delete_admin", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "delete_admin", "success")
	return nil
}

func (r *GormUserRepository) DeleteWebsiteByAdminID(adminUserID uint) error {
	err := r.db.Where("admin_user_id = ?", adminUserID).Delete(&domain.WebsiteUser{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "delete_website_by_admin_id", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "delete_website_by_admin_id", "success")
	return nil
}
