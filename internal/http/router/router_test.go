package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roomcast/roomcast-backend/internal/domain"
	"github.com/roomcast/roomcast-backend/internal/health"
	"github.com/roomcast/roomcast-backend/internal/http/handler"
	"github.com/roomcast/roomcast-backend/internal/repository"
	"github.com/roomcast/roomcast-backend/internal/security"
	"github.com/roomcast/roomcast-backend/internal/service"
)

func newRouterForTest(t *testing.T) http.Handler {
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

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	devices := repository.NewDeviceRepository(db)
	stats := repository.NewStatisticsRepository(db)
	resets := repository.NewResetRepository(db)
	tokens := security.NewDeviceTokenManager("roomcast-backend", "roomcast-app", "test-device-secret")

	authSvc := service.NewAuthService(users, sessions, resets, service.NewInMemorySessionCacheStore(), log, 24*time.Hour, 30*time.Minute)
	deviceSvc := service.NewDeviceService(users, devices, stats, tokens, log, 24*time.Hour)
	accountSvc := service.NewAccountService(users, sessions, devices, stats, resets, log)
	statsSvc := service.NewStatisticsService(stats, log)

	return NewRouter(Dependencies{
		AuthHandler:       handler.NewAuthHandler(authSvc, deviceSvc, false),
		AccountHandler:    handler.NewAccountHandler(accountSvc, authSvc),
		DeviceHandler:     handler.NewDeviceHandler(deviceSvc),
		StatisticsHandler: handler.NewStatisticsHandler(statsSvc),
		SessionVerifier:   authSvc,
		DeviceTokens:      tokens,
		Logger:            log,
		Readiness:         nil,
	})
}

func perform(r http.Handler, method, target string, headers map[string]string, cookies []*http.Cookie, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "10.10.10.10:1234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func dataField(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
	}
	return body.Data
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == security.SessionCookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestRouterHealthEndpoints(t *testing.T) {
	r := newRouterForTest(t)

	rr := perform(r, http.MethodGet, "/health/live", nil, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("liveness: expected 200, got %d", rr.Code)
	}
	rr = perform(r, http.MethodGet, "/health/ready", nil, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readiness without probes: expected 200, got %d", rr.Code)
	}
}

func TestRouterReadinessReportsFailingProbe(t *testing.T) {
	r := NewRouter(Dependencies{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Readiness: health.NewProbeRunner(time.Second, health.Probe{
			Name:  "database",
			Check: func(ctx context.Context) error { return errors.New("connection refused") },
		}),
	})

	rr := perform(r, http.MethodGet, "/health/ready", nil, nil, "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing probe: expected 503, got %d (%s)", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("expected probe detail in body, got %s", rr.Body.String())
	}
}

func TestRouterWebsiteLoginFlow(t *testing.T) {
	r := newRouterForTest(t)

	rr := perform(r, http.MethodPost, "/api/v1/accounts", nil, nil, `{"username":"alice","password":"Abcdef12"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account: expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}

	rr = perform(r, http.MethodPost, "/api/v1/auth/login", nil, nil, `{"username":"alice","password":"Abcdef12"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	cookie := sessionCookie(t, rr)
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be http-only")
	}

	rr = perform(r, http.MethodGet, "/api/v1/auth/verify-session", nil, []*http.Cookie{cookie}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d", rr.Code)
	}
	if data := dataField(t, rr); data["username"] != "alice" {
		t.Fatalf("unexpected verify payload: %v", data)
	}

	rr = perform(r, http.MethodPost, "/api/v1/auth/logout", nil, []*http.Cookie{cookie}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rr.Code)
	}
	rr = perform(r, http.MethodGet, "/api/v1/auth/verify-session", nil, []*http.Cookie{cookie}, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("verify after logout: expected 401, got %d", rr.Code)
	}
}

func TestRouterLoginRejectsBadCredentials(t *testing.T) {
	r := newRouterForTest(t)

	rr := perform(r, http.MethodPost, "/api/v1/accounts", nil, nil, `{"username":"alice","password":"Abcdef12"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account: expected 201, got %d", rr.Code)
	}
	rr = perform(r, http.MethodPost, "/api/v1/auth/login", nil, nil, `{"username":"alice","password":"Wrong999"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRouterDeviceSyncAndStatisticsFlow(t *testing.T) {
	r := newRouterForTest(t)

	rr := perform(r, http.MethodPost, "/api/v1/accounts", nil, nil, `{"username":"alice","password":"Abcdef12"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account: expected 201, got %d", rr.Code)
	}

	rr = perform(r, http.MethodPost, "/api/v1/auth/device-login", nil, nil,
		`{"username":"alice","password":"Abcdef12","device_id":"dev-1","device_name":"Lobby"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("device login: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	token, _ := dataField(t, rr)["token"].(string)
	if token == "" {
		t.Fatal("expected bearer token")
	}
	bearer := map[string]string{"Authorization": "Bearer " + token}

	sync := `{
		"total_videos": 3,
		"total_views": 42,
		"total_floors": 1,
		"total_rooms": 5,
		"time_range_start": 1787486400000,
		"videos": [{"video_id":"vid-1","video_title":"Lobby Tour","views":42,"view_history":{"2026-08-30":42}}],
		"floors": [{"floor_id":"floor-1","floor_name":"Ground","room_count":5}]
	}`
	rr = perform(r, http.MethodPost, "/api/v1/statistics/sync", bearer, nil, sync)
	if rr.Code != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	// Sync without a bearer token is rejected.
	rr = perform(r, http.MethodPost, "/api/v1/statistics/sync", nil, nil, sync)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated sync: expected 401, got %d", rr.Code)
	}

	rr = perform(r, http.MethodPost, "/api/v1/auth/login", nil, nil, `{"username":"alice","password":"Abcdef12"}`)
	cookie := sessionCookie(t, rr)

	rr = perform(r, http.MethodGet, "/api/v1/statistics?device_id=all", nil, []*http.Cookie{cookie}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get statistics: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	data := dataField(t, rr)
	if data["total_views"] != float64(42) {
		t.Fatalf("expected synced views in report, got %v", data)
	}

	rr = perform(r, http.MethodGet, "/api/v1/devices", nil, []*http.Cookie{cookie}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list devices: expected 200, got %d", rr.Code)
	}

	rr = perform(r, http.MethodPost, "/api/v1/auth/device-logout", bearer, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("device logout: expected 200, got %d", rr.Code)
	}
}

func TestRouterPasswordResetFlow(t *testing.T) {
	r := newRouterForTest(t)

	rr := perform(r, http.MethodPost, "/api/v1/accounts", nil, nil, `{"username":"alice","password":"Abcdef12"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account: expected 201, got %d", rr.Code)
	}

	rr = perform(r, http.MethodPost, "/api/v1/auth/password-reset/request", nil, nil, `{"username":"alice"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("reset request: expected 201, got %d (%s)", rr.Code, rr.Body.String())
	}
	requestID, _ := dataField(t, rr)["id"].(string)
	if requestID == "" {
		t.Fatal("expected reset request id")
	}

	rr = perform(r, http.MethodGet, "/api/v1/auth/password-reset/"+requestID+"/status", nil, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reset status: expected 200, got %d", rr.Code)
	}
	if data := dataField(t, rr); data["status"] != "pending" {
		t.Fatalf("expected pending status, got %v", data)
	}

	// Resetting before confirmation is refused.
	rr = perform(r, http.MethodPost, "/api/v1/auth/password-reset", nil, nil, `{"username":"alice","new_password":"Newpass12"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unconfirmed reset: expected 403, got %d (%s)", rr.Code, rr.Body.String())
	}

	body := fmt.Sprintf(`{"request_id":%q,"username":"alice"}`, requestID)
	rr = perform(r, http.MethodPost, "/api/v1/auth/password-reset/confirm", nil, nil, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	rr = perform(r, http.MethodPost, "/api/v1/auth/password-reset", nil, nil, `{"username":"alice","new_password":"abc"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("weak password: expected 400, got %d", rr.Code)
	}
	rr = perform(r, http.MethodPost, "/api/v1/auth/password-reset", nil, nil, `{"username":"alice","new_password":"Newpass12"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	rr = perform(r, http.MethodPost, "/api/v1/auth/login", nil, nil, `{"username":"alice","password":"Newpass12"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", rr.Code)
	}
}

func TestRouterAccountDeleteRequiresOwnership(t *testing.T) {
	r := newRouterForTest(t)

	rr := perform(r, http.MethodPost, "/api/v1/accounts", nil, nil, `{"username":"alice","password":"Abcdef12"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account: expected 201, got %d", rr.Code)
	}
	adminID := dataField(t, rr)["id"].(float64)

	rr = perform(r, http.MethodPost, "/api/v1/auth/login", nil, nil, `{"username":"alice","password":"Abcdef12"}`)
	cookie := sessionCookie(t, rr)

	rr = perform(r, http.MethodDelete, "/api/v1/accounts/9999", nil, []*http.Cookie{cookie}, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign delete: expected 403, got %d", rr.Code)
	}

	target := fmt.Sprintf("/api/v1/accounts/%d", int(adminID))
	rr = perform(r, http.MethodDelete, target, nil, []*http.Cookie{cookie}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete own account: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	rr = perform(r, http.MethodPost, "/api/v1/auth/login", nil, nil, `{"username":"alice","password":"Abcdef12"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("login after delete: expected 401, got %d", rr.Code)
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	r := newRouterForTest(t)

	rr := perform(r, http.MethodPut, "/api/v1/auth/login", nil, nil, `{}`)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestRouterProtectedRoutesRequireSession(t *testing.T) {
	r := newRouterForTest(t)

	for _, target := range []string{"/api/v1/devices", "/api/v1/statistics", "/api/v1/statistics/csv"} {
		rr := perform(r, http.MethodGet, target, nil, nil, "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", target, rr.Code)
		}
	}
}
