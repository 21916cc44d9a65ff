package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-desk/internal/collection"
	"github.com/odyssey-erp/odyssey-desk/internal/realtime"
)

var (
	_ realtime.Metrics   = (*Metrics)(nil)
	_ collection.Metrics = (*Metrics)(nil)
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesRealtimeState(t *testing.T) {
	body := scrape(t, NewMetrics())

	assert.Contains(t, body, `odyssey_desk_realtime_state{state="disconnected"} 1`)
	assert.Contains(t, body, `odyssey_desk_realtime_state{state="connected"} 0`)
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestMetricsRealtimeAndCollection(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObserveState(realtime.StateConnected)
	metrics.ObserveReconnect(1)
	metrics.ObserveReconnect(1)
	metrics.ObserveFrame(realtime.FrameDispatched)
	metrics.ObserveFrame(realtime.FrameMalformed)
	metrics.ObserveDelta("tasks", "update", true)
	metrics.ObserveDelta("tasks", "delete", false)

	body := scrape(t, metrics)
	assert.Contains(t, body, `odyssey_desk_realtime_state{state="connected"} 1`)
	assert.Contains(t, body, `odyssey_desk_realtime_state{state="disconnected"} 0`)
	assert.Contains(t, body, `odyssey_desk_realtime_reconnects_total{attempt="1"} 2`)
	assert.Contains(t, body, `odyssey_desk_realtime_frames_total{result="malformed"} 1`)
	assert.Contains(t, body, `odyssey_desk_collection_deltas_total{action="update",domain="tasks",result="applied"} 1`)
	assert.Contains(t, body, `odyssey_desk_collection_deltas_total{action="delete",domain="tasks",result="ignored"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics

	metrics.ObserveState(realtime.StateConnected)
	metrics.ObserveReconnect(1)
	metrics.ObserveFrame(realtime.FrameDispatched)
	metrics.ObserveDelta("tasks", "create", true)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
