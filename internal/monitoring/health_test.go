package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getStatus(t *testing.T, h *HealthChecker) (int, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return rec.Code, status
}

func TestHealthStalledBeforeFirstCycle(t *testing.T) {
	h := NewHealthChecker(time.Minute)
	code, status := getStatus(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "stalled", status.Status)
}

func TestHealthHealthyAfterCycle(t *testing.T) {
	h := NewHealthChecker(time.Minute)
	h.CycleCompleted(2, false, false)

	code, status := getStatus(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 2, status.OpenPositions)
}

func TestHealthReportsHaltAndRetrain(t *testing.T) {
	h := NewHealthChecker(time.Minute)
	h.CycleCompleted(0, true, false)
	_, status := getStatus(t, h)
	assert.Equal(t, "halted", status.Status)

	h.CycleCompleted(0, false, true)
	_, status = getStatus(t, h)
	assert.Equal(t, "degraded", status.Status)
}
