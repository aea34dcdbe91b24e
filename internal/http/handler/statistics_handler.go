package handler

import (
	"net/http"

	"github.com/roomcast/roomcast-backend/internal/http/middleware"
	"github.com/roomcast/roomcast-backend/internal/http/response"
	"github.com/roomcast/roomcast-backend/internal/observability"
	"github.com/roomcast/roomcast-backend/internal/service"
)

type StatisticsHandler struct {
	stats *service.StatisticsService
}

func NewStatisticsHandler(stats *service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{stats: stats}
}

// Sync ingests a device snapshot. The caller's identity comes from the
// bearer token, never from the payload.
func (h *StatisticsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.DeviceFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing device identity", nil)
		return
	}
	var payload service.SyncPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	result, err := h.stats.Sync(r.Context(), identity.AdminUserID, identity.DeviceID, &payload)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	observability.Audit(r, "statistics.synced",
		"admin_user_id", identity.AdminUserID,
		"device_id", identity.DeviceID,
		"videos_synced", result.VideosSynced,
		"videos_failed", result.VideosFailed,
	)
	response.JSON(w, r, http.StatusOK, result)
}

// Get answers the dashboard report. ?device_id= scopes to one device;
// omitted or "all" aggregates across devices.
func (h *StatisticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	deviceID := r.URL.Query().Get("device_id")
	report, err := h.stats.Get(r.Context(), session.AdminUserID, deviceID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, report)
}

// CSV returns the newest stored CSV export.
func (h *StatisticsHandler) CSV(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	csv, err := h.stats.LatestCSV(session.AdminUserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, csv)
}
