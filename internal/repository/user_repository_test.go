package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/roomcast/roomcast-backend/internal/domain"
)

func TestUserRepositoryCreateWithWebsiteUser(t *testing.T) {
	repo := newUserRepoForTest(t)

	admin := &domain.AdminUser{Username: "lobby-admin", PasswordHash: "hash"}
	if err := createAccountForTest(repo, admin); err != nil {
		t.Fatalf("create: %v", err)
	}
	if admin.ID == 0 {
		t.Fatalf("expected admin id assigned")
	}

	site, err := repo.FindWebsiteByAdminID(admin.ID)
	if err != nil {
		t.Fatalf("find website user: %v", err)
	}
	if site.Username != "lobby-admin" || !site.IsActive {
		t.Fatalf("unexpected website user: %+v", site)
	}
}

func TestUserRepositoryCreateRejectsDuplicateUsername(t *testing.T) {
	repo := newUserRepoForTest(t)

	first := &domain.AdminUser{Username: "taken", PasswordHash: "hash"}
	if err := createAccountForTest(repo, first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	second := &domain.AdminUser{Username: "taken", PasswordHash: "hash2"}
	if err := createAccountForTest(repo, second); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestUserRepositoryRecordAdminLogin(t *testing.T) {
	repo := newUserRepoForTest(t)

	admin := &domain.AdminUser{Username: "visitor", PasswordHash: "hash"}
	if err := createAccountForTest(repo, admin); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.RecordAdminLogin(admin.ID, "dev-7"); err != nil {
		t.Fatalf("record login: %v", err)
	}
	got, err := repo.FindAdminByID(admin.ID)
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if got.DeviceID != "dev-7" {
		t.Fatalf("expected device id recorded, got %q", got.DeviceID)
	}
	if got.LastLogin == nil || time.Since(*got.LastLogin) > time.Minute {
		t.Fatalf("expected fresh last_login, got %v", got.LastLogin)
	}
}

func TestUserRepositoryUpdatePasswordMirrorsWebsiteUser(t *testing.T) {
	repo := newUserRepoForTest(t)

	admin := &domain.AdminUser{Username: "rotating", PasswordHash: "old"}
	if err := createAccountForTest(repo, admin); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.UpdatePasswordByUsername("rotating", "new"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	got, err := repo.FindAdminByUsername("rotating")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if got.PasswordHash != "new" {
		t.Fatalf("expected admin hash rotated, got %q", got.PasswordHash)
	}
	site, err := repo.FindWebsiteByUsername("rotating")
	if err != nil {
		t.Fatalf("find website user: %v", err)
	}
	if site.PasswordHash != "new" {
		t.Fatalf("expected website hash mirrored, got %q", site.PasswordHash)
	}
}

func TestUserRepositoryDeleteAdmin(t *testing.T) {
	repo := newUserRepoForTest(t)

	admin := &domain.AdminUser{Username: "leaving", PasswordHash: "hash"}
	if err := createAccountForTest(repo, admin); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.DeleteWebsiteByAdminID(admin.ID); err != nil {
		t.Fatalf("delete website user: %v", err)
	}
	if err := repo.DeleteAdmin(admin.ID); err != nil {
		t.Fatalf("delete admin: %v", err)
	}
	if _, err := repo.FindAdminByID(admin.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected admin gone, got %v", err)
	}
	if err := repo.DeleteAdmin(admin.ID); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on second delete, got %v", err)
	}
}

func createAccountForTest(repo UserRepository, admin *domain.AdminUser) error {
	website := &domain.WebsiteUser{
		Username:     admin.Username,
		PasswordHash: admin.PasswordHash,
		IsActive:     true,
	}
	return repo.CreateWithWebsiteUser(admin, website)
}

func newUserRepoForTest(t *testing.T) UserRepository {
	t.Helper()
	return NewUserRepository(newTestDB(t, &domain.AdminUser{}, &domain.WebsiteUser{}))
}
