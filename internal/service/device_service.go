package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roomcast/roomcast-backend/internal/domain"
	"github.com/roomcast/roomcast-backend/internal/observability"
	"github.com/roomcast/roomcast-backend/internal/repository"
	"github.com/roomcast/roomcast-backend/internal/security"

	"github.com/google/uuid"
)

// DeviceLoginResult carries the bearer token the app uses for device-scoped
// calls plus the stored device session.
type DeviceLoginResult struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expires_at"`
	Session   *domain.DeviceSession `json:"session"`
}

// DeviceView is a device entry in the device listing, regardless of which
// source it was recovered from.
type DeviceView struct {
	DeviceID   string     `json:"device_id"`
	DeviceName string     `json:"device_name,omitempty"`
	LastActive *time.Time `json:"last_active,omitempty"`
	IsActive   bool       `json:"is_active"`
	Source     string     `json:"source"`
}

const (
	deviceSourceSession    = "session"
	deviceSourceAdmin      = "admin_profile"
	deviceSourceStatistics = "statistics"
)

type DeviceService struct {
	users    repository.UserRepository
	devices  repository.DeviceRepository
	stats    repository.StatisticsRepository
	tokens   *security.DeviceTokenManager
	logger   *slog.Logger
	tokenTTL time.Duration
}

func NewDeviceService(
	users repository.UserRepository,
	devices repository.DeviceRepository,
	stats repository.StatisticsRepository,
	tokens *security.DeviceTokenManager,
	logger *slog.Logger,
	tokenTTL time.Duration,
) *DeviceService {
	return &DeviceService{
		users:    users,
		devices:  devices,
		stats:    stats,
		tokens:   tokens,
		logger:   logger,
		tokenTTL: tokenTTL,
	}
}

// Login authenticates the admin credentials and upserts the device session
// keyed by (admin user, device). The credential check fails exactly like the
// website login; a known device is reactivated rather than duplicated.
func (s *DeviceService) Login(ctx context.Context, username, password, deviceID, deviceName string) (*DeviceLoginResult, error) {
	admin, err := s.users.FindAdminByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.CheckDummyPassword(password)
			observability.RecordDeviceLogin("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		observability.RecordDeviceLogin("error")
		return nil, err
	}
	if !security.CheckPassword(admin.PasswordHash, password) {
		observability.RecordDeviceLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	session := &domain.DeviceSession{
		SessionID:   uuid.NewString(),
		AdminUserID: admin.ID,
		DeviceID:    deviceID,
		DeviceName:  deviceName,
		LastActive:  time.Now().UTC(),
		IsActive:    true,
	}
	stored, err := s.devices.Upsert(session)
	if err != nil {
		observability.RecordDeviceLogin("error")
		return nil, err
	}
	if err := s.users.RecordAdminLogin(admin.ID, deviceID); err != nil {
		// Login bookkeeping must not fail the login itself.
		s.logger.WarnContext(ctx, "admin login bookkeeping failed", "admin_user_id", admin.ID, "error", err)
	}

	token, err := s.tokens.Sign(admin.ID, deviceID, s.tokenTTL)
	if err != nil {
		observability.RecordDeviceLogin("error")
		return nil, err
	}
	observability.RecordDeviceLogin("success")
	return &DeviceLoginResult{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.tokenTTL),
		Session:   stored,
	}, nil
}

// Logout marks the device inactive. An unknown device is not an error; the
// device ends up inactive either way.
func (s *DeviceService) Logout(ctx context.Context, adminUserID uint, deviceID string) error {
	found, err := s.devices.Deactivate(adminUserID, deviceID)
	if err != nil {
		observability.RecordAuthLogout("error")
		return err
	}
	if !found {
		s.logger.InfoContext(ctx, "device logout for unknown device", "admin_user_id", adminUserID, "device_id", deviceID)
	}
	observability.RecordAuthLogout("success")
	return nil
}

// ListDevices returns every device known for the account. Active device
// sessions are the primary source; the admin profile's last device and
// devices that only ever wrote statistics fill the gaps, so the listing
// works even for tenants that predate device session tracking.
func (s *DeviceService) ListDevices(ctx context.Context, adminUserID uint) ([]DeviceView, error) {
	views := make([]DeviceView, 0, 4)
	seen := make(map[string]struct{})

	sessions, err := s.devices.ListActive(adminUserID)
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		lastActive := session.LastActive
		views = append(views, DeviceView{
			DeviceID:   session.DeviceID,
			DeviceName: session.DeviceName,
			LastActive: &lastActive,
			IsActive:   session.IsActive,
			Source:     deviceSourceSession,
		})
		seen[session.DeviceID] = struct{}{}
	}

	admin, err := s.users.FindAdminByID(adminUserID)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, err
		}
	} else if admin.DeviceID != "" {
		if _, ok := seen[admin.DeviceID]; !ok {
			views = append(views, DeviceView{
				DeviceID:   admin.DeviceID,
				LastActive: admin.LastLogin,
				Source:     deviceSourceAdmin,
			})
			seen[admin.DeviceID] = struct{}{}
		}
	}

	statDevices, err := s.stats.DistinctDeviceIDs(adminUserID)
	if err != nil {
		// The listing is still useful without the statistics-derived tail.
		s.logger.WarnContext(ctx, "statistics device lookup failed", "admin_user_id", adminUserID, "error", err)
		return views, nil
	}
	for _, deviceID := range statDevices {
		if _, ok := seen[deviceID]; ok {
			continue
		}
		views = append(views, DeviceView{
			DeviceID: deviceID,
			Source:   deviceSourceStatistics,
		})
		seen[deviceID] = struct{}{}
	}
	return views, nil
}
