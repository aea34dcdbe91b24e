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

// LoginResult is what a successful website login hands back to the handler.
// The handler turns Token into the session cookie.
type LoginResult struct {
	Token         string    `json:"-"`
	ExpiresAt     time.Time `json:"expires_at"`
	WebsiteUserID uint      `json:"website_user_id"`
	AdminUserID   uint      `json:"admin_user_id"`
	Username      string    `json:"username"`
}

// sessionCacheTTLCap bounds how long a cache hit can outlive a server-side
// session deletion, such as the one after a password reset.
const sessionCacheTTLCap = 5 * time.Minute

// missingUsernameTTL is how long an unknown username stays in the negative
// cache before the reset endpoint consults the database again.
const missingUsernameTTL = time.Minute

type AuthService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	resets     repository.ResetRepository
	cache      SessionCacheStore
	abuse      AuthAbuseGuard
	missing    MissingUsernameCache
	logger     *slog.Logger
	sessionTTL time.Duration
	resetTTL   time.Duration
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	resets repository.ResetRepository,
	cache SessionCacheStore,
	logger *slog.Logger,
	sessionTTL, resetTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		resets:     resets,
		cache:      cache,
		abuse:      NewNoopAuthAbuseGuard(),
		missing:    NewNoopMissingUsernameCache(),
		logger:     logger,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
	}
}

// WithAbuseGuard enables failure throttling on the login and reset surfaces.
func (s *AuthService) WithAbuseGuard(guard AuthAbuseGuard) *AuthService {
	if guard != nil {
		s.abuse = guard
	}
	return s
}

// WithMissingUsernameCache enables negative caching of unknown usernames on
// the reset request path.
func (s *AuthService) WithMissingUsernameCache(cache MissingUsernameCache) *AuthService {
	if cache != nil {
		s.missing = cache
	}
	return s
}

// Login authenticates a website user and issues a fresh session. Every
// failure mode returns ErrInvalidCredentials: an unknown username burns a
// dummy bcrypt comparison so its latency matches a wrong password.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if cooldown, err := s.abuse.Check(ctx, AuthAbuseScopeLogin, username); err != nil {
		s.logger.WarnContext(ctx, "abuse guard check failed", "error", err)
	} else if cooldown > 0 {
		observability.RecordAuthLogin("website", "throttled")
		return nil, ErrTooManyAttempts
	}

	user, err := s.users.FindWebsiteByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.CheckDummyPassword(password)
			return nil, s.loginFailure(ctx, username)
		}
		observability.RecordAuthLogin("website", "error")
		return nil, err
	}
	if !user.IsActive {
		security.CheckDummyPassword(password)
		return nil, s.loginFailure(ctx, username)
	}
	if !security.CheckPassword(user.PasswordHash, password) {
		return nil, s.loginFailure(ctx, username)
	}
	if err := s.abuse.Reset(ctx, AuthAbuseScopeLogin, username); err != nil {
		s.logger.WarnContext(ctx, "abuse guard reset failed", "error", err)
	}

	token, err := security.NewSessionToken()
	if err != nil {
		observability.RecordAuthLogin("website", "error")
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(s.sessionTTL)
	session := &domain.WebsiteSession{
		SessionToken:  token,
		WebsiteUserID: user.ID,
		AdminUserID:   user.AdminUserID,
		ExpiresAt:     expiresAt,
	}
	if err := s.sessions.Create(session); err != nil {
		observability.RecordAuthLogin("website", "error")
		return nil, err
	}
	cached := &CachedSession{
		WebsiteUserID: user.ID,
		AdminUserID:   user.AdminUserID,
		Username:      user.Username,
		ExpiresAt:     expiresAt,
	}
	if err := s.cache.Set(ctx, token, cached, cacheTTL(s.sessionTTL)); err != nil {
		s.logger.WarnContext(ctx, "session cache set failed", "error", err)
	}

	observability.RecordAuthLogin("website", "success")
	return &LoginResult{
		Token:         token,
		ExpiresAt:     expiresAt,
		WebsiteUserID: user.ID,
		AdminUserID:   user.AdminUserID,
		Username:      user.Username,
	}, nil
}

// VerifySession resolves a session token to its identity, consulting the
// cache before the database. Expired sessions are cleaned up on the spot.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*CachedSession, error) {
	if token == "" {
		observability.RecordSessionValidation(ctx, "missing", "none")
		return nil, ErrSessionInvalid
	}

	cached, hit, err := s.cache.Get(ctx, token)
	if err != nil {
		s.logger.WarnContext(ctx, "session cache get failed", "error", err)
	}
	if hit {
		if time.Now().After(cached.ExpiresAt) {
			_ = s.cache.Delete(ctx, token)
		} else {
			observability.RecordSessionValidation(ctx, "valid", "cache")
			return cached, nil
		}
	}

	session, err := s.sessions.FindByToken(token)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			observability.RecordSessionValidation(ctx, "unknown", "database")
			return nil, ErrSessionInvalid
		}
		return nil, err
	}
	if session.Expired(time.Now()) {
		_ = s.sessions.DeleteByToken(token)
		_ = s.cache.Delete(ctx, token)
		observability.RecordSessionValidation(ctx, "expired", "database")
		return nil, ErrSessionInvalid
	}

	user, err := s.users.FindWebsiteByAdminID(session.AdminUserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Account deleted underneath a live session.
			_ = s.sessions.DeleteByToken(token)
			_ = s.cache.Delete(ctx, token)
			observability.RecordSessionValidation(ctx, "orphaned", "database")
			return nil, ErrSessionInvalid
		}
		return nil, err
	}

	resolved := &CachedSession{
		WebsiteUserID: session.WebsiteUserID,
		AdminUserID:   session.AdminUserID,
		Username:      user.Username,
		ExpiresAt:     session.ExpiresAt,
	}
	if remaining := time.Until(session.ExpiresAt); remaining > 0 {
		if err := s.cache.Set(ctx, token, resolved, cacheTTL(remaining)); err != nil {
			s.logger.WarnContext(ctx, "session cache set failed", "error", err)
		}
	}
	observability.RecordSessionValidation(ctx, "valid", "database")
	return resolved, nil
}

// Logout invalidates the session. Logging out an unknown or already removed
// token succeeds; the end state is the same.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		observability.RecordAuthLogout("noop")
		return nil
	}
	if err := s.cache.Delete(ctx, token); err != nil {
		s.logger.WarnContext(ctx, "session cache delete failed", "error", err)
	}
	if err := s.sessions.DeleteByToken(token); err != nil {
		observability.RecordAuthLogout("error")
		return err
	}
	observability.RecordAuthLogout("success")
	return nil
}

// RequestPasswordReset opens a pending reset window for the account. Any
// earlier request for the same username is displaced.
func (s *AuthService) RequestPasswordReset(ctx context.Context, username string) (*domain.PasswordResetRequest, error) {
	if cooldown, err := s.abuse.Check(ctx, AuthAbuseScopeReset, username); err != nil {
		s.logger.WarnContext(ctx, "abuse guard check failed", "error", err)
	} else if cooldown > 0 {
		return nil, ErrTooManyAttempts
	}
	if missing, err := s.missing.IsMissing(ctx, username); err != nil {
		s.logger.WarnContext(ctx, "missing username cache get failed", "error", err)
	} else if missing {
		return nil, ErrAccountNotFound
	}

	if _, err := s.users.FindAdminByUsername(username); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			if cacheErr := s.missing.MarkMissing(ctx, username, missingUsernameTTL); cacheErr != nil {
				s.logger.WarnContext(ctx, "missing username cache set failed", "error", cacheErr)
			}
			if _, guardErr := s.abuse.RegisterFailure(ctx, AuthAbuseScopeReset, username); guardErr != nil {
				s.logger.WarnContext(ctx, "abuse guard register failed", "error", guardErr)
			}
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	req := &domain.PasswordResetRequest{
		ID:        uuid.NewString(),
		Username:  username,
		Status:    domain.ResetStatusPending,
		ExpiresAt: time.Now().UTC().Add(s.resetTTL),
	}
	if err := s.resets.Replace(req); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "password reset requested", "username", username, "request_id", req.ID)
	return req, nil
}

// ConfirmPasswordReset moves a pending request to confirmed. The username
// must match the request it claims to confirm.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, requestID, username string) error {
	req, err := s.resets.FindByID(requestID)
	if err != nil {
		if errors.Is(err, repository.ErrResetRequestNotFound) {
			return ErrResetNotFound
		}
		return err
	}
	if req.Username != username {
		return ErrResetNotFound
	}
	if err := s.resets.Confirm(requestID, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrResetRequestNotFound) {
			return ErrResetNotFound
		}
		return err
	}
	s.logger.InfoContext(ctx, "password reset confirmed", "username", username, "request_id", requestID)
	return nil
}

// ResetStatus reports the current state of a reset request so the app can
// poll it.
func (s *AuthService) ResetStatus(requestID string) (*domain.PasswordResetRequest, error) {
	req, err := s.resets.FindByID(requestID)
	if err != nil {
		if errors.Is(err, repository.ErrResetRequestNotFound) {
			return nil, ErrResetNotFound
		}
		return nil, err
	}
	return req, nil
}

func (s *AuthService) ListPendingResets() ([]domain.PasswordResetRequest, error) {
	return s.resets.ListPending(time.Now().UTC())
}

// ResetPassword sets a new password for the account. It requires a live
// confirmed reset request, enforces the password policy, consumes the
// request, and drops every session of the account.
func (s *AuthService) ResetPassword(ctx context.Context, username, newPassword string) error {
	if unmet := security.ValidatePasswordPolicy(newPassword); len(unmet) > 0 {
		return &WeakPasswordError{Requirements: unmet}
	}

	now := time.Now().UTC()
	req, err := s.resets.FindConfirmed(username, now)
	if err != nil {
		if !errors.Is(err, repository.ErrResetRequestNotFound) {
			return err
		}
		if _, pendErr := s.resets.FindValidPending(username, now); pendErr == nil {
			return ErrResetNotConfirmed
		} else if !errors.Is(pendErr, repository.ErrResetRequestNotFound) {
			return pendErr
		}
		return ErrResetNotFound
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordByUsername(username, hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	if err := s.resets.Consume(req.ID); err != nil {
		s.logger.WarnContext(ctx, "reset request consume failed", "request_id", req.ID, "error", err)
	}
	s.invalidateAccountSessions(ctx, username)
	s.logger.InfoContext(ctx, "password reset completed", "username", username, "request_id", req.ID)
	return nil
}

// ChangePassword rotates the password for a logged-in user after checking
// the current one. The same policy as resets applies.
func (s *AuthService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	user, err := s.users.FindWebsiteByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.CheckDummyPassword(currentPassword)
			return ErrInvalidCredentials
		}
		return err
	}
	if !security.CheckPassword(user.PasswordHash, currentPassword) {
		return ErrInvalidCredentials
	}
	if unmet := security.ValidatePasswordPolicy(newPassword); len(unmet) > 0 {
		return &WeakPasswordError{Requirements: unmet}
	}
	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordByUsername(username, hash); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password changed", "username", username)
	return nil
}

// loginFailure is the single exit for every credential failure so unknown
// usernames, inactive accounts and wrong passwords stay indistinguishable.
func (s *AuthService) loginFailure(ctx context.Context, username string) error {
	if _, err := s.abuse.RegisterFailure(ctx, AuthAbuseScopeLogin, username); err != nil {
		s.logger.WarnContext(ctx, "abuse guard register failed", "error", err)
	}
	observability.RecordAuthLogin("website", "invalid_credentials")
	return ErrInvalidCredentials
}

func cacheTTL(remaining time.Duration) time.Duration {
	if remaining > sessionCacheTTLCap {
		return sessionCacheTTLCap
	}
	return remaining
}

// invalidateAccountSessions drops server-side sessions after a credential
// change. Cached entries age out within sessionCacheTTLCap.
func (s *AuthService) invalidateAccountSessions(ctx context.Context, username string) {
	admin, err := s.users.FindAdminByUsername(username)
	if err != nil {
		s.logger.WarnContext(ctx, "session invalidation lookup failed", "username", username, "error", err)
		return
	}
	if err := s.sessions.DeleteByAdminUserID(admin.ID); err != nil {
		s.logger.WarnContext(ctx, "session invalidation failed", "username", username, "error", err)
	}
}
