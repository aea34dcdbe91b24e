package handler

import (
	"net/http"

	"github.com/roomcast/roomcast-backend/internal/http/middleware"
	"github.com/roomcast/roomcast-backend/internal/http/response"
	"github.com/roomcast/roomcast-backend/internal/service"
)

type DeviceHandler struct {
	devices *service.DeviceService
}

func NewDeviceHandler(devices *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// List answers every device known for the caller's account.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	devices, err := h.devices.ListDevices(r.Context(), session.AdminUserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, devices)
}
