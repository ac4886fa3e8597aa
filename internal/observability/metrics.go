package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	cqiCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqi",
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "CQi commands issued, by command and outcome.",
		},
		[]string{"command", "outcome"},
	)
	cqiCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cqi",
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "CQi request/response round-trip time in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	probeUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cqi",
			Subsystem: "probe",
			Name:      "up",
			Help:      "1 if the last probe of the target logged in and pinged successfully.",
		},
		[]string{"target"},
	)
	probeDuration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cqi",
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Duration of the last probe of the target.",
		},
		[]string{"target"},
	)
	probeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqi",
			Subsystem: "probe",
			Name:      "failures_total",
			Help:      "Failed probes, by target.",
		},
		[]string{"target"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cqi",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests to the probe exporter.",
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(cqiCalls, cqiCallDuration, probeUp, probeDuration, probeFailures, httpRequests)
	})
}

// RecordCall counts one command exchange. outcome is a response category
// name or one of the client-side failure classes.
func RecordCall(command, outcome string, duration time.Duration) {
	RegisterMetrics()
	cqiCalls.WithLabelValues(command, outcome).Inc()
	cqiCallDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func RecordProbe(target string, up bool, duration time.Duration) {
	RegisterMetrics()
	v := 0.0
	if up {
		v = 1
	} else {
		probeFailures.WithLabelValues(target).Inc()
	}
	probeUp.WithLabelValues(target).Set(v)
	probeDuration.WithLabelValues(target).Set(duration.Seconds())
}

func RecordHTTPRequest(node, method, path string, status int) {
	RegisterMetrics()
	httpRequests.WithLabelValues(node, method, path, strconv.Itoa(status)).Inc()
}
