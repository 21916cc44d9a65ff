// Package observability exposes Prometheus metrics for the desk agent.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/odyssey-desk/internal/realtime"
)

var realtimeStates = []realtime.State{
	realtime.StateDisconnected,
	realtime.StateConnecting,
	realtime.StateConnected,
	realtime.StateReconnecting,
}

// Metrics collects the agent's Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	realtimeState   *prometheus.GaugeVec
	reconnects      *prometheus.CounterVec
	frames          *prometheus.CounterVec
	deltas          *prometheus.CounterVec
}

// NewMetrics builds a registry with HTTP, realtime and collection metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_desk_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_desk_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "odyssey_desk_realtime_state",
		Help: "1 for the current realtime connection state, 0 otherwise.",
	}, []string{"state"})
	reconnects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_desk_realtime_reconnects_total",
		Help: "Scheduled reconnect attempts by attempt number.",
	}, []string{"attempt"})
	frames := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_desk_realtime_frames_total",
		Help: "Inbound realtime frames by outcome.",
	}, []string{"result"})
	deltas := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_desk_collection_deltas_total",
		Help: "Collection deltas by domain, action and outcome.",
	}, []string{"domain", "action", "result"})
	registry.MustRegister(requests, duration, state, reconnects, frames, deltas)

	for _, s := range realtimeStates {
		state.WithLabelValues(s.String()).Set(0)
	}
	state.WithLabelValues(realtime.StateDisconnected.String()).Set(1)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		realtimeState:   state,
		reconnects:      reconnects,
		frames:          frames,
		deltas:          deltas,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveState marks state as the current realtime state.
func (m *Metrics) ObserveState(state realtime.State) {
	if m == nil {
		return
	}
	for _, s := range realtimeStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.realtimeState.WithLabelValues(s.String()).Set(v)
	}
}

// ObserveReconnect counts a scheduled reconnect.
func (m *Metrics) ObserveReconnect(attempt int) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

// ObserveFrame counts an inbound frame.
func (m *Metrics) ObserveFrame(result string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(result).Inc()
}

// ObserveDelta counts a collection delta.
func (m *Metrics) ObserveDelta(domain, action string, applied bool) {
	if m == nil {
		return
	}
	result := "ignored"
	if applied {
		result = "applied"
	}
	m.deltas.WithLabelValues(domain, action, result).Inc()
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps streaming responses working behind the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
