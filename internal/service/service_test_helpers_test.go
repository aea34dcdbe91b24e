package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/roomcast/roomcast-backend/internal/domain"
	"github.com/roomcast/roomcast-backend/internal/repository"
	"github.com/roomcast/roomcast-backend/internal/security"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the services against a throwaway sqlite database, the same
// way the repository tests do.
type testEnv struct {
	db       *gorm.DB
	users    repository.UserRepository
	sessions repository.SessionRepository
	devices  repository.DeviceRepository
	stats    repository.StatisticsRepository
	resets   repository.ResetRepository
	logger   *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &testEnv{
		db:       db,
		users:    repository.NewUserRepository(db),
		sessions: repository.NewSessionRepository(db),
		devices:  repository.NewDeviceRepository(db),
		stats:    repository.NewStatisticsRepository(db),
		resets:   repository.NewResetRepository(db),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (e *testEnv) authService(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(e.users, e.sessions, e.resets, NewInMemorySessionCacheStore(), e.logger, testSessionTTL, testResetTTL)
}

func (e *testEnv) deviceService(t *testing.T) *DeviceService {
	t.Helper()
	tokens := security.NewDeviceTokenManager("roomcast-backend", "roomcast-app", "test-device-secret")
	return NewDeviceService(e.users, e.devices, e.stats, tokens, e.logger, testSessionTTL)
}

func (e *testEnv) accountService(t *testing.T) *AccountService {
	t.Helper()
	return NewAccountService(e.users, e.sessions, e.devices, e.stats, e.resets, e.logger)
}

func (e *testEnv) createAccount(t *testing.T, username, password string) *domain.AdminUser {
	t.Helper()
	admin, err := e.accountService(t).Create(context.Background(), username, password)
	if err != nil {
		t.Fatalf("create account %s: %v", username, err)
	}
	return admin
}

func futureExpiry() time.Time { return time.Now().Add(time.Hour).UTC() }
