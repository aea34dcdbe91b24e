package integration

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roomcast/roomcast-backend/internal/service"
)

func TestConcurrentLoginFailuresGetThrottled(t *testing.T) {
	baseURL, client, closeFn := newBackendTestServer(t, backendOptions{
		abusePolicy: &service.AuthAbusePolicy{
			FreeAttempts: 3,
			BaseDelay:    time.Minute,
			Multiplier:   2,
			MaxDelay:     5 * time.Minute,
			ResetWindow:  time.Minute,
		},
	})
	defer closeFn()

	resp, _ := doJSON(t, client, http.MethodPost, baseURL+"/api/v1/accounts",
		map[string]string{"username": "alice", "password": "Abcdef12"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create account: status=%d", resp.StatusCode)
	}

	const attempts = 20
	var unauthorized, throttled, other atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, baseURL+"/api/v1/auth/login",
				strings.NewReader(`{"username":"alice","password":"Wrong999"}`))
			if err != nil {
				other.Add(1)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)
			if err != nil {
				other.Add(1)
				return
			}
			resp.Body.Close()
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				unauthorized.Add(1)
			case http.StatusTooManyRequests:
				throttled.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	if other.Load() != 0 {
		t.Fatalf("unexpected status codes: unauthorized=%d throttled=%d other=%d",
			unauthorized.Load(), throttled.Load(), other.Load())
	}
	if unauthorized.Load()+throttled.Load() != attempts {
		t.Fatalf("lost responses: unauthorized=%d throttled=%d", unauthorized.Load(), throttled.Load())
	}

	// After the burst the cooldown is active and blocks even the right
	// password.
	resp, _ = doJSON(t, client, http.MethodPost, baseURL+"/api/v1/auth/login",
		map[string]string{"username": "alice", "password": "Abcdef12"}, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected cooldown to hold, got %d", resp.StatusCode)
	}
}
