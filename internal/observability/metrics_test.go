package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobfill/jobfill/internal/domain"
)

func TestMetrics_RecordFillPass(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordFillPass(domain.SiteWorkday, "success", domain.FillResults{Filled: 3, Skipped: 2, Uncertain: 1, Failed: 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FillPassesTotal.WithLabelValues("workday", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FillFieldsTotal.WithLabelValues("workday", "filled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FillFieldsTotal.WithLabelValues("workday", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FillFieldsTotal.WithLabelValues("workday", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FillFieldsTotal.WithLabelValues("workday", "uncertain")))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// each registry gets its own collectors, so repeated construction is safe
	a := NewMetrics("test", prometheus.NewRegistry())
	b := NewMetrics("test", prometheus.NewRegistry())

	a.RecordCorrections(domain.SiteGreenhouse, 2, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(a.CorrectionsDetected.WithLabelValues("greenhouse")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CorrectionsDetected.WithLabelValues("greenhouse")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordFillPass(domain.SiteUnknown, "success", domain.FillResults{})
		m.RecordMatch(domain.SiteUnknown, domain.SourceNone, domain.ConfidenceLow)
		m.RecordCorrections(domain.SiteUnknown, 1, 1)
		m.RecordTransportCall(domain.ActionGetProfile, "ok", time.Millisecond)
		m.RecordCircuitState("x", 2)
		m.RecordStoreOperation("memory", "get", nil, time.Millisecond)
		m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	})

	handler := m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMetrics_HTTPMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	handler := m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/actions/getProfile", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/actions/getProfile", "201")))

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}
