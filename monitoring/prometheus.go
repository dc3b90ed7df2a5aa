package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const promNamespace = "ecosort"

// promMetrics espelha o Aggregator num registry Prometheus. O JSON de /metrics
// continua vindo do Aggregator.
type promMetrics struct {
	requests        *prometheus.CounterVec
	errors          *prometheus.CounterVec
	classifications *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	system          *prometheus.GaugeVec
}

func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	m := &promMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "http_requests_total",
			Help:      "Requests handled, by method and endpoint.",
		}, []string{"method", "endpoint"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "http_errors_total",
			Help:      "Responses with status >= 400, by status and endpoint.",
		}, []string{"status", "endpoint"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      "classifications_total",
			Help:      "Classification results, by modality and category.",
		}, []string{"modality", "category"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Request latency, by endpoint.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		system: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: promNamespace,
			Name:      "system_usage",
			Help:      "Last host reading taken by a metrics snapshot.",
		}, []string{"resource"}),
	}
	reg.MustRegister(m.requests, m.errors, m.classifications, m.duration, m.system)
	return m
}

func (m *promMetrics) observeRequest(endpoint, method string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, endpoint).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(strconv.Itoa(status), endpoint).Inc()
	}
	m.duration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *promMetrics) observeClassification(modality, category string) {
	m.classifications.WithLabelValues(modality, category).Inc()
}

func (m *promMetrics) observeSystem(s SystemMetrics) {
	m.system.WithLabelValues("cpu_percent").Set(s.CPUPercent)
	m.system.WithLabelValues("memory_percent").Set(s.MemoryPercent)
	m.system.WithLabelValues("disk_percent").Set(s.DiskUsagePercent)
	m.system.WithLabelValues("process_memory_mb").Set(s.ProcessMemoryMB)
	m.system.WithLabelValues("open_files").Set(float64(s.OpenFiles))
}
