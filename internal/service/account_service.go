package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roomcast/roomcast-backend/internal/domain"
	"github.com/roomcast/roomcast-backend/internal/repository"
	"github.com/roomcast/roomcast-backend/internal/security"
)

type AccountService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	devices  repository.DeviceRepository
	stats    repository.StatisticsRepository
	resets   repository.ResetRepository
	missing  MissingUsernameCache
	logger   *slog.Logger
}

func NewAccountService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	devices repository.DeviceRepository,
	stats repository.StatisticsRepository,
	resets repository.ResetRepository,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:    users,
		sessions: sessions,
		devices:  devices,
		stats:    stats,
		resets:   resets,
		missing:  NewNoopMissingUsernameCache(),
		logger:   logger,
	}
}

// WithMissingUsernameCache makes account creation drop the negative lookup
// entry for the new username.
func (s *AccountService) WithMissingUsernameCache(cache MissingUsernameCache) *AccountService {
	if cache != nil {
		s.missing = cache
	}
	return s
}

// Create provisions the admin user and its paired website login in one
// transaction. The website user shares the credential.
func (s *AccountService) Create(ctx context.Context, username, password string) (*domain.AdminUser, error) {
	if unmet := security.ValidatePasswordPolicy(password); len(unmet) > 0 {
		return nil, &WeakPasswordError{Requirements: unmet}
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &domain.AdminUser{
		Username:     username,
		PasswordHash: hash,
	}
	website := &domain.WebsiteUser{
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.CreateWithWebsiteUser(admin, website); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	if err := s.missing.Forget(ctx, username); err != nil {
		s.logger.WarnContext(ctx, "missing username cache delete failed", "error", err)
	}
	s.logger.InfoContext(ctx, "account created", "admin_user_id", admin.ID, "username", username)
	return admin, nil
}

// Get returns the admin user for an id.
func (s *AccountService) Get(adminUserID uint) (*domain.AdminUser, error) {
	admin, err := s.users.FindAdminByID(adminUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return admin, nil
}

// Delete removes the account and everything hanging off it. Cleanup is best
// effort: each table is attempted in turn and a failure is logged without
// stopping the cascade, because telemetry leftovers are preferable to an
// account stuck half-deleted. Only a failure to delete the admin row itself
// fails the call.
func (s *AccountService) Delete(ctx context.Context, adminUserID uint) error {
	admin, err := s.users.FindAdminByID(adminUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"app_statistics", func() error { return s.stats.DeleteAppStatisticsByAdminUserID(adminUserID) }},
		{"video_statistics", func() error { return s.stats.DeleteVideoStatisticsByAdminUserID(adminUserID) }},
		{"floor_statistics", func() error { return s.stats.DeleteFloorStatisticsByAdminUserID(adminUserID) }},
		{"csv_statistics", func() error { return s.stats.DeleteCSVStatisticsByAdminUserID(adminUserID) }},
		{"website_sessions", func() error { return s.sessions.DeleteByAdminUserID(adminUserID) }},
		{"device_sessions", func() error { return s.devices.DeleteByAdminUserID(adminUserID) }},
		{"password_reset_requests", func() error { return s.resets.DeleteByUsername(admin.Username) }},
		{"website_users", func() error { return s.users.DeleteWebsiteByAdminID(adminUserID) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			s.logger.WarnContext(ctx, "account cleanup step failed",
				"admin_user_id", adminUserID, "step", step.name, "error", err)
		}
	}

	if err := s.users.DeleteAdmin(adminUserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	s.logger.InfoContext(ctx, "account deleted", "admin_user_id", adminUserID, "username", admin.Username)
	return nil
}
