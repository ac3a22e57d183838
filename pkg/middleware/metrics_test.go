package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric returns the sample of c whose labels include all of want.
func findMetric(t *testing.T, c prometheus.Collector, want map[string]string) *dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		require.NoError(t, m.Write(d))
		got := make(map[string]string, len(d.GetLabel()))
		for _, lp := range d.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		matched := true
		for k, v := range want {
			if got[k] != v {
				matched = false
				break
			}
		}
		if matched {
			return d
		}
	}
	return nil
}

func newMetricsRouter(service string, h http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/api/v1/books/{id}", h)
	return r
}

// ====================================================================
// PrometheusMetrics
// ====================================================================

func TestPrometheusMetrics_LabelsByRoutePattern(t *testing.T) {
	router := newMetricsRouter("metrics-route", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, id := range []string{"b1", "b2", "b3"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/books/"+id, nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	m := findMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-route", "method": "GET", "route": "/api/v1/books/{id}", "status": "200",
	})
	require.NotNil(t, m)
	assert.Equal(t, float64(3), m.GetCounter().GetValue())
}

func TestPrometheusMetrics_UnmatchedRoute(t *testing.T) {
	router := newMetricsRouter("metrics-unmatched", func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	m := findMetric(t, httpRequestsTotal, map[string]string{
		"service": "metrics-unmatched", "route": unmatchedRoute, "status": "404",
	})
	assert.NotNil(t, m)
}

func TestPrometheusMetrics_StatusAndSize(t *testing.T) {
	router := newMetricsRouter("metrics-size", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"b1"}`))
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/books/b1", nil))

	count := findMetric(t, httpRequestsTotal, map[string]string{"service": "metrics-size", "status": "201"})
	require.NotNil(t, count, "first status written wins")

	size := findMetric(t, httpResponseBytes, map[string]string{"service": "metrics-size"})
	require.NotNil(t, size)
	assert.Equal(t, uint64(1), size.GetHistogram().GetSampleCount())
	assert.Equal(t, float64(len(`{"id":"b1"}`)), size.GetHistogram().GetSampleSum())
}

func TestPrometheusMetrics_ImplicitOK(t *testing.T) {
	router := newMetricsRouter("metrics-implicit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/books/b1", nil))

	m := findMetric(t, httpRequestDuration, map[string]string{"service": "metrics-implicit", "status": "200"})
	require.NotNil(t, m)
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
}

func TestPrometheusMetrics_InFlightDuringRequest(t *testing.T) {
	var during float64
	router := newMetricsRouter("metrics-inflight", func(w http.ResponseWriter, r *http.Request) {
		if m := findMetric(t, httpRequestsInFlight, map[string]string{"service": "metrics-inflight"}); m != nil {
			during = m.GetGauge().GetValue()
		}
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/books/b1", nil))

	assert.Equal(t, float64(1), during)
	after := findMetric(t, httpRequestsInFlight, map[string]string{"service": "metrics-inflight"})
	require.NotNil(t, after)
	assert.Zero(t, after.GetGauge().GetValue())
}
