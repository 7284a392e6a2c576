package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHandlerExposesRuntimeCollectors(t *testing.T) {
	ObserveSwap("", "no_route", time.Second)
	ObserveSwap("base", "ok", 2*time.Second)
	ObserveTask("succeeded")
	ObserveTaskRetry()

	body := scrape(t)
	assert.Contains(t, body, `agentswap_swaps_total{chain="unknown",outcome="no_route"}`)
	assert.Contains(t, body, `agentswap_swaps_total{chain="base",outcome="ok"}`)
	assert.Contains(t, body, `agentswap_swap_duration_seconds_count{chain="base"}`)
	assert.Contains(t, body, `agentswap_tasks_total{status="succeeded"}`)
	assert.Contains(t, body, "agentswap_task_retries_total")
}

func TestObserveHTTPRequestCountsServerErrors(t *testing.T) {
	ObserveHTTPRequest("probe", http.MethodGet, http.StatusBadGateway, 10*time.Millisecond)
	ObserveHTTPRequest("probe", http.MethodGet, http.StatusOK, 10*time.Millisecond)

	body := scrape(t)
	assert.Contains(t, body, `agentswap_http_request_errors_total{handler="probe",method="GET"} 1`)
	assert.Contains(t, body, `agentswap_http_requests_total{code="200",handler="probe",method="GET"} 1`)
}
