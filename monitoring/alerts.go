package monitoring

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"

	AlertErrorRate    = "error_rate"
	AlertMemoryUsage  = "memory_usage"
	AlertDiskUsage    = "disk_usage"
	AlertResponseTime = "response_time"
)

// Alert é só observacional: nunca bloqueia requisição.
type Alert struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Thresholds em percentual; ResponseTime compara a média por endpoint.
type Thresholds struct {
	ErrorRate    float64
	MemoryUsage  float64
	DiskUsage    float64
	ResponseTime time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ErrorRate:    5,
		MemoryUsage:  90,
		DiskUsage:    95,
		ResponseTime: 5 * time.Second,
	}
}

// AlertManager avalia snapshots e guarda o histórico das últimas Retention
// (24h). A poda acontece a cada Check.
type AlertManager struct {
	mu      sync.Mutex
	history []Alert

	thresholds Thresholds
	retention  time.Duration
	now        func() time.Time
	log        *slog.Logger
}

type AlertOption func(*AlertManager)

func WithThresholds(t Thresholds) AlertOption {
	return func(m *AlertManager) { m.thresholds = t }
}

func WithAlertClock(now func() time.Time) AlertOption {
	return func(m *AlertManager) {
		if now != nil {
			m.now = now
		}
	}
}

func WithAlertLogger(l *slog.Logger) AlertOption {
	return func(m *AlertManager) {
		if l != nil {
			m.log = l
		}
	}
}

func NewAlertManager(opts ...AlertOption) *AlertManager {
	m := &AlertManager{
		thresholds: DefaultThresholds(),
		retention:  24 * time.Hour,
		now:        time.Now,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check devolve os alertas novos do snapshot e os acrescenta ao histórico.
func (m *AlertManager) Check(snap Snapshot) []Alert {
	now := m.now()
	var alerts []Alert
	add := func(kind, severity, msg string) {
		alerts = append(alerts, Alert{
			ID:        uuid.NewString(),
			Type:      kind,
			Severity:  severity,
			Message:   msg,
			Timestamp: now,
		})
	}

	t := m.thresholds
	if snap.ErrorRatePercent > t.ErrorRate {
		add(AlertErrorRate, SeverityHigh, fmt.Sprintf("High error rate: %.2f%%", snap.ErrorRatePercent))
	}
	if snap.SystemMetrics.MemoryPercent > t.MemoryUsage {
		add(AlertMemoryUsage, SeverityMedium, fmt.Sprintf("High memory usage: %.2f%%", snap.SystemMetrics.MemoryPercent))
	}
	if snap.SystemMetrics.DiskUsagePercent > t.DiskUsage {
		add(AlertDiskUsage, SeverityHigh, fmt.Sprintf("High disk usage: %.2f%%", snap.SystemMetrics.DiskUsagePercent))
	}
	if t.ResponseTime > 0 {
		limit := float64(t.ResponseTime) / float64(time.Millisecond)
		for endpoint, rt := range snap.ResponseTimes {
			if rt.Avg > limit {
				add(AlertResponseTime, SeverityMedium, fmt.Sprintf("Slow endpoint %s: avg %.0fms", endpoint, rt.Avg))
			}
		}
	}

	for _, a := range alerts {
		m.log.Warn("alert raised", "type", a.Type, "severity", a.Severity, "message", a.Message)
	}

	m.mu.Lock()
	m.history = append(m.history, alerts...)
	m.pruneLocked(now)
	m.mu.Unlock()

	return alerts
}

// History devolve uma cópia do histórico retido.
func (m *AlertManager) History() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alert(nil), m.history...)
}

func (m *AlertManager) pruneLocked(now time.Time) {
	cutoff := now.Add(-m.retention)
	kept := m.history[:0]
	for _, a := range m.history {
		if a.Timestamp.After(cutoff) {
			kept = append(kept, a)
		}
	}
	clear(m.history[len(kept):])
	m.history = kept
}
