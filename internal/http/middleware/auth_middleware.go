package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/roomcast/roomcast-backend/internal/http/response"
	"github.com/roomcast/roomcast-backend/internal/security"
	"github.com/roomcast/roomcast-backend/internal/service"
)

type contextKey string

const (
	SessionContextKey contextKey = "session"
	DeviceContextKey  contextKey = "device"
)

// SessionVerifier resolves a website session token to its identity.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*service.CachedSession, error)
}

// SessionAuth guards website routes with the session cookie.
func SessionAuth(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := security.GetCookie(r, security.SessionCookieName)
			if token == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
				return
			}
			session, err := verifier.VerifySession(r.Context(), token)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "session invalid or expired", nil)
				return
			}
			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromContext(ctx context.Context) (*service.CachedSession, bool) {
	s, ok := ctx.Value(SessionContextKey).(*service.CachedSession)
	return s, ok
}

// DeviceIdentity is what a device bearer token resolves to.
type DeviceIdentity struct {
	AdminUserID uint
	DeviceID    string
}

// DeviceAuth guards device routes with the bearer token issued at device
// login.
func DeviceAuth(tokens *security.DeviceTokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}
			raw := strings.TrimSpace(auth[7:])
			claims, err := tokens.Parse(raw)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token", nil)
				return
			}
			adminUserID, err := claims.AdminUserID()
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token", nil)
				return
			}
			identity := &DeviceIdentity{AdminUserID: adminUserID, DeviceID: claims.DeviceID}
			ctx := context.WithValue(r.Context(), DeviceContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func DeviceFromContext(ctx context.Context) (*DeviceIdentity, bool) {
	d, ok := ctx.Value(DeviceContextKey).(*DeviceIdentity)
	return d, ok
}
