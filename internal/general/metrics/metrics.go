// Package metrics holds the Prometheus collectors shared by all services.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ride_booking"

var (
	OTPSendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "send_total",
			Help:      "Verification code send attempts by outcome (sent or error kind).",
		},
		[]string{"outcome"},
	)

	OTPVerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "verify_total",
			Help:      "Verification code confirmations by outcome (verified or error kind).",
		},
		[]string{"outcome"},
	)

	OTPProviderRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "provider_retries_total",
			Help:      "Send retries triggered by transient provider failures.",
		},
	)

	TrackingSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "samples_total",
			Help:      "Device samples processed by result (accepted, filtered).",
		},
		[]string{"result"},
	)

	TrackingPushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "sink_push_total",
			Help:      "Periodic location pushes to the backend sink by result.",
		},
		[]string{"result"},
	)

	TrackingSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracking",
			Name:      "sessions_active",
			Help:      "Trips currently being tracked.",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by service, route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "route", "code"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records latency for every request served by next, labelled by mux pattern.
func Instrument(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.WithLabelValues(service, route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer (websocket hijacking).
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the connection to websocket upgraders.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: underlying writer cannot hijack")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
