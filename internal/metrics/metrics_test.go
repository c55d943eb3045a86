package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest(http.MethodGet, "/api/kv/{key}", http.StatusOK, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/kv/{key}", http.StatusOK, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/kv/{key}", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/kv/{key}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/kv/{key}", "404")))
}

func TestMetrics_ObserveAuthFailure(t *testing.T) {
	m := New()

	m.ObserveAuthFailure("missing")
	m.ObserveAuthFailure("expired")
	m.ObserveAuthFailure("missing")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthFailuresTotal.WithLabelValues("missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthFailuresTotal.WithLabelValues("expired")))
}

func TestMetrics_ObserveStoreOp(t *testing.T) {
	m := New()

	m.ObserveStoreOp("get", true)
	m.ObserveStoreOp("get", false)
	m.ObserveStoreOp("set", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOpsTotal.WithLabelValues("get", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOpsTotal.WithLabelValues("get", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOpsTotal.WithLabelValues("set", "hit")))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.ObserveAuthFailure("missing")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.AuthFailuresTotal.WithLabelValues("missing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.AuthFailuresTotal.WithLabelValues("missing")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveStoreOp("set", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kvgate_store_operations_total{op="set",result="hit"} 1`)
}
