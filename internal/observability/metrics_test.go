package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/items")

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsRR := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := metricsRR.Body.String()
	if !strings.Contains(body, `stockroom_http_requests_total{code="418",route="/items"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `stockroom_http_request_duration_seconds_bucket{route="/items"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestJobTrackerCountsOutcomes(t *testing.T) {
	metrics := NewJobMetrics(NewMetrics().Registerer())

	if err := metrics.Track("notification:sweep").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantErr := errors.New("boom")
	if err := metrics.Track("notification:sweep").End(wantErr); !errors.Is(err, wantErr) {
		t.Fatalf("tracker must return the run error, got %v", err)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	var jm *JobMetrics

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if got := m.Middleware(next); got == nil {
		t.Fatal("nil metrics middleware must pass through")
	}

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics handler, got %d", rr.Code)
	}

	jm.SetLowStockItems(3)
	if err := jm.Track("noop").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
