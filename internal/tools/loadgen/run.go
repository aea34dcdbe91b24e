package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// Config drives one load generation run against a live backend.
type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        int64
}

// Result aggregates the outcome of a run by status class.
type Result struct {
	TotalRequests int64
	Failures      int64
	StatusClasses map[string]int64
	Elapsed       time.Duration
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalizeProfile(profile string) string {
	p := strings.ToLower(strings.TrimSpace(profile))
	if p == "" {
		return "mixed"
	}
	return p
}

type requestPlan struct {
	method string
	path   string
	body   any
}

// plan returns the next request for the profile. The auth profile hammers
// login and verify, statistics follows the device sync path, health only
// touches the probes, and mixed interleaves all of them.
func plan(profile string, rng *rand.Rand) requestPlan {
	switch profile {
	case "auth":
		if rng.Intn(2) == 0 {
			return requestPlan{http.MethodPost, "/api/v1/auth/login", map[string]string{
				"username": fmt.Sprintf("loadgen-%d", rng.Intn(50)),
				"password": "Loadgen12",
			}}
		}
		return requestPlan{http.MethodGet, "/api/v1/auth/verify-session", nil}
	case "statistics":
		return requestPlan{http.MethodGet, "/api/v1/statistics", nil}
	case "health":
		if rng.Intn(2) == 0 {
			return requestPlan{http.MethodGet, "/health/live", nil}
		}
		return requestPlan{http.MethodGet, "/health/ready", nil}
	default:
		switch rng.Intn(4) {
		case 0:
			return plan("auth", rng)
		case 1:
			return plan("statistics", rng)
		case 2:
			return requestPlan{http.MethodGet, "/api/v1/devices", nil}
		default:
			return plan("health", rng)
		}
	}
}

// Run fires requests at cfg.BaseURL until the duration elapses. Responses
// with any HTTP status count as delivered; only transport errors count as
// failures. 401s are expected and part of the point: they exercise the
// full middleware and error path.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	profile := normalizeProfile(cfg.Profile)
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()

	var total, failures int64
	classes := make(map[string]int64)
	var classMu sync.Mutex

	work := make(chan requestPlan)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				atomic.AddInt64(&total, 1)
				status, err := fire(ctx, client, cfg.BaseURL, p)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				class := classifyStatusClass(status)
				classMu.Lock()
				classes[class]++
				classMu.Unlock()
			}
		}()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	start := time.Now()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			select {
			case work <- plan(profile, rng):
			case <-ctx.Done():
				break loop
			}
		}
	}
	close(work)
	wg.Wait()

	return &Result{
		TotalRequests: atomic.LoadInt64(&total),
		Failures:      atomic.LoadInt64(&failures),
		StatusClasses: classes,
		Elapsed:       time.Since(start),
	}, nil
}

func fire(ctx context.Context, client *http.Client, baseURL string, p requestPlan) (int, error) {
	var body *bytes.Reader
	if p.body != nil {
		raw, err := json.Marshal(p.body)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, p.method, strings.TrimRight(baseURL, "/")+p.path, body)
	if err != nil {
		return 0, err
	}
	if p.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
