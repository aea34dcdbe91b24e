package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roomcast/roomcast-backend/internal/domain"
	"github.com/roomcast/roomcast-backend/internal/http/handler"
	"github.com/roomcast/roomcast-backend/internal/http/router"
	"github.com/roomcast/roomcast-backend/internal/repository"
	"github.com/roomcast/roomcast-backend/internal/security"
	"github.com/roomcast/roomcast-backend/internal/service"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type backendOptions struct {
	abusePolicy *service.AuthAbusePolicy
}

// newBackendTestServer boots the full HTTP stack over a throwaway sqlite
// database and a miniredis instance, the closest thing to production wiring
// that runs inside a test.
func newBackendTestServer(t *testing.T, opts backendOptions) (string, *http.Client, func()) {
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

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	devices := repository.NewDeviceRepository(db)
	stats := repository.NewStatisticsRepository(db)
	resets := repository.NewResetRepository(db)
	tokens := security.NewDeviceTokenManager("roomcast-backend", "roomcast-app", "integration-device-secret")

	authSvc := service.NewAuthService(users, sessions, resets,
		service.NewRedisSessionCacheStore(client, "itest"), log, 24*time.Hour, 30*time.Minute).
		WithMissingUsernameCache(service.NewRedisMissingUsernameCache(client, "itest:missing"))
	if opts.abusePolicy != nil {
		authSvc = authSvc.WithAbuseGuard(service.NewRedisAuthAbuseGuard(client, "itest:abuse", *opts.abusePolicy))
	}
	deviceSvc := service.NewDeviceService(users, devices, stats, tokens, log, 24*time.Hour)
	accountSvc := service.NewAccountService(users, sessions, devices, stats, resets, log)
	statsSvc := service.NewStatisticsService(stats, log)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(authSvc, deviceSvc, false),
		AccountHandler:    handler.NewAccountHandler(accountSvc, authSvc),
		DeviceHandler:     handler.NewDeviceHandler(deviceSvc),
		StatisticsHandler: handler.NewStatisticsHandler(statsSvc),
		SessionVerifier:   authSvc,
		DeviceTokens:      tokens,
		Logger:            log,
	})

	ts := httptest.NewServer(h)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	httpClient := &http.Client{Jar: jar, Timeout: 10 * time.Second}
	return ts.URL, httpClient, ts.Close
}

func doJSON(t *testing.T, client *http.Client, method, target string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, raw)
	}
	return resp, env
}
