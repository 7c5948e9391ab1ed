package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker reports the engine's liveness over HTTP: last completed
// cycle, open position count, kill-switch and retrain-advisory flags.
type HealthChecker struct {
	mu            sync.RWMutex
	started       time.Time
	lastCycle     time.Time
	openPositions int
	halted        bool
	retrainNeeded bool
	staleAfter    time.Duration
}

type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Uptime        string    `json:"uptime"`
	LastCycle     time.Time `json:"last_cycle"`
	OpenPositions int       `json:"open_positions"`
	Halted        bool      `json:"halted"`
	RetrainNeeded bool      `json:"retrain_needed"`
}

func NewHealthChecker(staleAfter time.Duration) *HealthChecker {
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	return &HealthChecker{started: time.Now(), staleAfter: staleAfter}
}

// CycleCompleted records a finished evaluation cycle.
func (h *HealthChecker) CycleCompleted(openPositions int, halted, retrainNeeded bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = time.Now()
	h.openPositions = openPositions
	h.halted = halted
	h.retrainNeeded = retrainNeeded
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	switch {
	case h.lastCycle.IsZero() || time.Since(h.lastCycle) > h.staleAfter:
		status = "stalled"
		code = http.StatusServiceUnavailable
	case h.halted:
		status = "halted"
	case h.retrainNeeded:
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(HealthStatus{
		Status:        status,
		Timestamp:     time.Now(),
		Uptime:        time.Since(h.started).Round(time.Second).String(),
		LastCycle:     h.lastCycle,
		OpenPositions: h.openPositions,
		Halted:        h.halted,
		RetrainNeeded: h.retrainNeeded,
	})
}
