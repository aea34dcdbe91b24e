package health

import (
	"context"
	"time"
)

// CheckResult is one dependency's readiness verdict.
type CheckResult struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Probe checks a single dependency.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// ProbeRunner runs every registered probe with a per-probe timeout.
type ProbeRunner struct {
	probes  []Probe
	timeout time.Duration
}

func NewProbeRunner(timeout time.Duration, probes ...Probe) *ProbeRunner {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ProbeRunner{probes: probes, timeout: timeout}
}

// Ready reports whether every dependency answered, with per-probe detail.
func (r *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	results := make([]CheckResult, 0, len(r.probes))
	ready := true
	for _, probe := range r.probes {
		probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
		start := time.Now()
		err := probe.Check(probeCtx)
		cancel()
		result := CheckResult{
			Name:      probe.Name,
			Healthy:   err == nil,
			LatencyMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			result.Error = err.Error()
			ready = false
		}
		results = append(results, result)
	}
	return ready, results
}
