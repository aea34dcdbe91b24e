package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roomcast/roomcast-backend/internal/http/middleware"
	"github.com/roomcast/roomcast-backend/internal/http/response"
	"github.com/roomcast/roomcast-backend/internal/observability"
	"github.com/roomcast/roomcast-backend/internal/security"
	"github.com/roomcast/roomcast-backend/internal/service"
)

type AuthHandler struct {
	auth         *service.AuthService
	devices      *service.DeviceService
	cookieSecure bool
}

func NewAuthHandler(auth *service.AuthService, devices *service.DeviceService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		devices:      devices,
		cookieSecure: cookieSecure,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// Login authenticates website credentials and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.login", "username", result.Username)
	http.SetCookie(w, security.SessionCookie(result.Token, time.Until(result.ExpiresAt), h.cookieSecure))
	response.JSON(w, r, http.StatusOK, result)
}

// Logout drops the session and clears the cookie. A missing or stale cookie
// still answers 200.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := security.GetCookie(r, security.SessionCookieName)
	if err := h.auth.Logout(r.Context(), token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, security.ClearSessionCookie(h.cookieSecure))
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}

// VerifySession answers the identity behind the session cookie.
func (h *AuthHandler) VerifySession(w http.ResponseWriter, r *http.Request) {
	token := security.GetCookie(r, security.SessionCookieName)
	session, err := h.auth.VerifySession(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, session)
}

type resetRequestRequest struct {
	Username string `json:"username" validate:"required,max=128"`
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reset, err := h.auth.RequestPasswordReset(r.Context(), req.Username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password_reset.requested", "username", req.Username, "request_id", reset.ID)
	response.JSON(w, r, http.StatusCreated, reset)
}

type resetConfirmRequest struct {
	RequestID string `json:"request_id" validate:"required,uuid4"`
	Username  string `json:"username" validate:"required,max=128"`
}

func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ConfirmPasswordReset(r.Context(), req.RequestID, req.Username); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password_reset.confirmed", "username", req.Username, "request_id", req.RequestID)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "confirmed"})
}

// ResetStatus lets the app poll a reset request by id.
func (h *AuthHandler) ResetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, err := h.auth.ResetStatus(id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"id":         req.ID,
		"status":     req.Status,
		"expires_at": req.ExpiresAt,
	})
}

func (h *AuthHandler) ListPendingResets(w http.ResponseWriter, r *http.Request) {
	pending, err := h.auth.ListPendingResets()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, pending)
}

type resetPasswordRequest struct {
	Username    string `json:"username" validate:"required,max=128"`
	NewPassword string `json:"new_password" validate:"required,max=256"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Username, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password_reset.completed", "username", req.Username)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_reset"})
}

type deviceLoginRequest struct {
	Username   string `json:"username" validate:"required,max=128"`
	Password   string `json:"password" validate:"required,max=256"`
	DeviceID   string `json:"device_id" validate:"required,max=64"`
	DeviceName string `json:"device_name" validate:"max=128"`
}

// DeviceLogin authenticates the app and returns the device bearer token.
func (h *AuthHandler) DeviceLogin(w http.ResponseWriter, r *http.Request) {
	var req deviceLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.devices.Login(r.Context(), req.Username, req.Password, req.DeviceID, req.DeviceName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.device_login", "username", req.Username, "device_id", req.DeviceID)
	response.JSON(w, r, http.StatusOK, result)
}

// DeviceLogout marks the calling device inactive.
func (h *AuthHandler) DeviceLogout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.DeviceFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing device identity", nil)
		return
	}
	if err := h.devices.Logout(r.Context(), identity.AdminUserID, identity.DeviceID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "auth.device_logout", "device_id", identity.DeviceID)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}
