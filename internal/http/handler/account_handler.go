package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/roomcast/roomcast-backend/internal/http/middleware"
	"github.com/roomcast/roomcast-backend/internal/http/response"
	"github.com/roomcast/roomcast-backend/internal/observability"
	"github.com/roomcast/roomcast-backend/internal/service"
)

type AccountHandler struct {
	accounts *service.AccountService
	auth     *service.AuthService
}

func NewAccountHandler(accounts *service.AccountService, auth *service.AuthService) *AccountHandler {
	return &AccountHandler{accounts: accounts, auth: auth}
}

type createAccountRequest struct {
	Username string `json:"username" validate:"required,min=3,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

// Create provisions a new tenant.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	admin, err := h.accounts.Create(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "account.created", "admin_user_id", admin.ID, "username", admin.Username)
	response.JSON(w, r, http.StatusCreated, admin)
}

// Delete removes the account behind the session. The id in the path must be
// the caller's own; nobody deletes someone else's tenant.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid account id", nil)
		return
	}
	if uint(id) != session.AdminUserID {
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "cannot delete another account", nil)
		return
	}
	if err := h.accounts.Delete(r.Context(), uint(id)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "account.deleted", "admin_user_id", id)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=256"`
	NewPassword     string `json:"new_password" validate:"required,max=256"`
}

// ChangePassword rotates the caller's password.
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ChangePassword(r.Context(), session.Username, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "account.password_changed", "username", session.Username)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_changed"})
}
