package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/diagkit/licensecheck/internal/doctor"
	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/lookup"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

type stubLookup struct {
	calls atomic.Int32
	raw   license.RawResponse
}

func (s *stubLookup) Lookup(context.Context, string) license.RawResponse {
	s.calls.Add(1)
	return s.raw
}

type staticHealth struct {
	report doctor.HealthReport
	ok     bool
}

func (h staticHealth) Last() (doctor.HealthReport, bool) {
	return h.report, h.ok
}

func sampleResponse() license.RawResponse {
	return license.RawResponse{
		"L1": {Name: strPtr("Suite"), DaysRemaining: intPtr(12), Seats: intPtr(5)},
		"L2": {Name: strPtr("Legacy"), DaysRemaining: intPtr(-4)},
		"L3": {Name: strPtr("Viewer"), DaysRemaining: intPtr(3)},
	}
}

func postCheck(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/licenses/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestNewRequiresLookup(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.ErrorContains(t, err, "lookup is required")
}

func TestCheckReturnsRankedGroups(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	source := &stubLookup{raw: sampleResponse()}
	srv, err := New(source, WithMetrics(metrics))
	require.NoError(t, err)

	rec := postCheck(t, srv.Handler(), `{"company":"Contoso","reference":"XSP1234567"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var body struct {
		Active []struct {
			ID      string `json:"id"`
			Urgency string `json:"urgency"`
		} `json:"active"`
		Expired []struct {
			ID string `json:"id"`
		} `json:"expired"`
		Summary license.Summary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Active, 2)
	assert.Equal(t, "L3", body.Active[0].ID)
	assert.Equal(t, "L1", body.Active[1].ID)
	assert.Equal(t, "critical", body.Active[0].Urgency)
	require.Len(t, body.Expired, 1)
	assert.Equal(t, "L2", body.Expired[0].ID)
	assert.Equal(t, 3, body.Summary.Total)
	assert.Equal(t, int32(1), source.calls.Load())

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.alerts.WithLabelValues("active")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.alerts.WithLabelValues("expired")))
}

func TestCheckValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "blank company", body: `{"company":"   ","reference":"XSP1234567"}`, want: license.MessageCompanyRequired},
		{name: "bad reference", body: `{"company":"Contoso","reference":"XSP12345"}`, want: license.MessageReferenceFormat},
		{name: "lowercase prefix", body: `{"company":"Contoso","reference":"xsp1234567"}`, want: license.MessageReferenceFormat},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			source := &stubLookup{raw: sampleResponse()}
			srv, err := New(source)
			require.NoError(t, err)

			rec := postCheck(t, srv.Handler(), tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body["error"])
			assert.Zero(t, source.calls.Load(), "invalid input must not reach the lookup service")
		})
	}
}

func TestCheckRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	srv, err := New(&stubLookup{})
	require.NoError(t, err)

	rec := postCheck(t, srv.Handler(), `{"company":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckWithFailingLookupReturnsEmptyResult(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	adapter := lookup.NewAdapter(
		lookup.Func(func(context.Context, string) (license.RawResponse, error) {
			return nil, assert.AnError
		}),
		lookup.WithObserver(metrics.ObserveLookup),
	)
	srv, err := New(adapter, WithMetrics(metrics))
	require.NoError(t, err)

	rec := postCheck(t, srv.Handler(), `{"company":"Contoso","reference":"XSP1234567"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body["active"])
	assert.Empty(t, body["expired"])
	assert.Equal(t, "No licenses found for this account.", body["message"])
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.lookups.WithLabelValues(lookup.OutcomeError)))
}

func TestRequestIDIsEchoed(t *testing.T) {
	t.Parallel()

	srv, err := New(&stubLookup{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	checkedAt := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		health HealthSource
		status int
	}{
		{name: "not wired", health: nil, status: http.StatusServiceUnavailable},
		{name: "no probe yet", health: staticHealth{}, status: http.StatusServiceUnavailable},
		{
			name:   "reachable",
			health: staticHealth{ok: true, report: doctor.HealthReport{Source: "http", Reachable: true, BreakerState: "closed", CheckedAt: checkedAt}},
			status: http.StatusOK,
		},
		{
			name:   "unreachable",
			health: staticHealth{ok: true, report: doctor.HealthReport{Source: "http", Error: "dial tcp: refused", CheckedAt: checkedAt}},
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			options := []Option{}
			if tt.health != nil {
				options = append(options, WithHealth(tt.health))
			}
			srv, err := New(&stubLookup{}, options...)
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tt.status, rec.Code)
			if report, ok := tt.health.(staticHealth); ok && report.ok {
				var body doctor.HealthReport
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, report.report.Reachable, body.Reachable)
				assert.Equal(t, checkedAt, body.CheckedAt)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	metrics.ObserveLookup("fixture", lookup.Result{Response: sampleResponse(), Duration: 20 * time.Millisecond})
	metrics.ObserveLookup("", lookup.Result{Response: license.RawResponse{}})

	srv, err := New(&stubLookup{}, WithMetrics(metrics))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()
	assert.Contains(t, text, `licensecheck_lookups_total{outcome="ok"} 1`)
	assert.Contains(t, text, `licensecheck_lookups_total{outcome="empty"} 1`)
	assert.Contains(t, text, `licensecheck_lookups_total{outcome="error"} 0`)
	assert.Contains(t, text, "licensecheck_lookup_duration_seconds_bucket")
}

func TestMetricsAbsentWithoutOption(t *testing.T) {
	t.Parallel()

	srv, err := New(&stubLookup{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var metrics *Metrics
	metrics.ObserveLookup("http", lookup.Result{})
	metrics.RecordGroups(license.Groups{})
}

func TestRunShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	srv, err := New(&stubLookup{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, "127.0.0.1:0")
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestNewLeavesDebugModeQuiet(t *testing.T) {
	var banner bytes.Buffer
	previousWriter := gin.DefaultWriter
	gin.DefaultWriter = &banner
	gin.SetMode(gin.DebugMode)
	t.Cleanup(func() {
		gin.DefaultWriter = previousWriter
		gin.SetMode(gin.TestMode)
	})

	srv, err := New(&stubLookup{raw: sampleResponse()})
	require.NoError(t, err)

	assert.Equal(t, gin.ReleaseMode, gin.Mode())
	assert.NotContains(t, banner.String(), "[GIN-debug]")

	rec := postCheck(t, srv.Handler(), `{"company":"Contoso","reference":"XSP1234567"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewKeepsExplicitMode(t *testing.T) {
	gin.SetMode(gin.TestMode)

	_, err := New(&stubLookup{raw: sampleResponse()})
	require.NoError(t, err)
	assert.Equal(t, gin.TestMode, gin.Mode())
}
