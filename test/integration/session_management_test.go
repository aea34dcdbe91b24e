package integration

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"testing"
	"time"
)

func TestTwoBrowserSessionsAreIndependent(t *testing.T) {
	baseURL, clientA, closeFn := newBackendTestServer(t, backendOptions{})
	defer closeFn()

	resp, env := doJSON(t, clientA, http.MethodPost, baseURL+"/api/v1/accounts",
		map[string]string{"username": "alice", "password": "Abcdef12"}, nil)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("create account: status=%d success=%v", resp.StatusCode, env.Success)
	}

	login := map[string]string{"username": "alice", "password": "Abcdef12"}
	resp, _ = doJSON(t, clientA, http.MethodPost, baseURL+"/api/v1/auth/login", login, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("browser A login: status=%d", resp.StatusCode)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	clientB := &http.Client{Jar: jar, Timeout: 10 * time.Second}
	resp, _ = doJSON(t, clientB, http.MethodPost, baseURL+"/api/v1/auth/login", login, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("browser B login: status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, clientA, http.MethodPost, baseURL+"/api/v1/auth/logout", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("browser A logout: status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, clientA, http.MethodGet, baseURL+"/api/v1/auth/verify-session", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("browser A after logout: expected 401, got %d", resp.StatusCode)
	}
	resp, env = doJSON(t, clientB, http.MethodGet, baseURL+"/api/v1/auth/verify-session", nil, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("browser B must stay logged in: status=%d success=%v", resp.StatusCode, env.Success)
	}
}

func TestDeviceSyncFeedsDashboardStatistics(t *testing.T) {
	baseURL, client, closeFn := newBackendTestServer(t, backendOptions{})
	defer closeFn()

	resp, _ := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/accounts",
		map[string]string{"username": "alice", "password": "Abcdef12"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account: status=%d", resp.StatusCode)
	}

	resp, env := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/device-login", map[string]string{
		"username": "alice", "password": "Abcdef12", "device_id": "dev-1", "device_name": "Lobby",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("device login: status=%d", resp.StatusCode)
	}
	var loginData struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &loginData); err != nil || loginData.Token == "" {
		t.Fatalf("decode device token: err=%v data=%s", err, env.Data)
	}
	bearer := map[string]string{"Authorization": "Bearer " + loginData.Token}

	resp, _ = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/statistics/sync", map[string]any{
		"total_videos": 2,
		"total_views":  7,
		"total_floors": 1,
		"total_rooms":  3,
		"videos": []map[string]any{
			{"video_id": "vid-1", "video_title": "Lobby Tour", "views": 7},
		},
		"floors": []map[string]any{
			{"floor_id": "floor-1", "floor_name": "Ground", "room_count": 3},
		},
	}, bearer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync: status=%d", resp.StatusCode)
	}

	resp, _ = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login",
		map[string]string{"username": "alice", "password": "Abcdef12"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("website login: status=%d", resp.StatusCode)
	}
	resp, env = doJSON(t, client, http.MethodGet, baseURL+"/api/v1/statistics", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("statistics: status=%d", resp.StatusCode)
	}
	var report struct {
		TotalViews int64 `json:"total_views"`
		TotalRooms int   `json:"total_rooms"`
	}
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.TotalViews != 7 || report.TotalRooms != 3 {
		t.Fatalf("unexpected report: %+v (%s)", report, env.Data)
	}
}
