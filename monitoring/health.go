package monitoring

import (
	"context"
	"time"
)

const (
	StatusHealthy   = "healthy"
	StatusWarning   = "warning"
	StatusError     = "error"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type DiskCheck struct {
	Status string `json:"status"`
	DiskUsage
	Message string `json:"message,omitempty"`
}

type MemoryCheck struct {
	Status string `json:"status"`
	MemoryUsage
	Message string `json:"message,omitempty"`
}

type MetricsCheck struct {
	Status        string  `json:"status"`
	UptimeHours   float64 `json:"uptime_hours"`
	TotalRequests uint64  `json:"total_requests"`
	ErrorRate     float64 `json:"error_rate"`
}

type HealthChecks struct {
	DiskSpace DiskCheck    `json:"disk_space"`
	Memory    MemoryCheck  `json:"memory"`
	Metrics   MetricsCheck `json:"metrics"`
}

type HealthReport struct {
	OverallStatus string       `json:"overall_status"`
	Timestamp     time.Time    `json:"timestamp"`
	Checks        HealthChecks `json:"checks"`
}

// HealthChecker compõe disco, memória e métricas num status geral:
// algum "error" → unhealthy, algum "warning" → degraded.
type HealthChecker struct {
	probe   SystemProbe
	metrics *Aggregator
	now     func() time.Time

	DiskThreshold   float64
	MemoryThreshold float64
}

func NewHealthChecker(probe SystemProbe, metrics *Aggregator) *HealthChecker {
	return &HealthChecker{
		probe:           probe,
		metrics:         metrics,
		now:             time.Now,
		DiskThreshold:   90,
		MemoryThreshold: 90,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	checks := HealthChecks{
		DiskSpace: h.checkDisk(ctx),
		Memory:    h.checkMemory(ctx),
		Metrics:   h.checkMetrics(),
	}

	overall := StatusHealthy
	for _, s := range []string{checks.DiskSpace.Status, checks.Memory.Status, checks.Metrics.Status} {
		if s == StatusError {
			overall = StatusUnhealthy
			break
		}
		if s == StatusWarning {
			overall = StatusDegraded
		}
	}

	return HealthReport{OverallStatus: overall, Timestamp: h.now(), Checks: checks}
}

func (h *HealthChecker) checkDisk(ctx context.Context) DiskCheck {
	du, err := h.probe.Disk(ctx)
	if err != nil {
		return DiskCheck{Status: StatusError, Message: err.Error()}
	}
	return DiskCheck{Status: threshold(du.UsedPercent, h.DiskThreshold), DiskUsage: du}
}

func (h *HealthChecker) checkMemory(ctx context.Context) MemoryCheck {
	mu, err := h.probe.Memory(ctx)
	if err != nil {
		return MemoryCheck{Status: StatusError, Message: err.Error()}
	}
	return MemoryCheck{Status: threshold(mu.UsedPercent, h.MemoryThreshold), MemoryUsage: mu}
}

func (h *HealthChecker) checkMetrics() MetricsCheck {
	total, _, rate := h.metrics.Totals()
	return MetricsCheck{
		Status:        StatusHealthy,
		UptimeHours:   round2(h.metrics.Uptime().Hours()),
		TotalRequests: total,
		ErrorRate:     rate,
	}
}

func threshold(used, limit float64) string {
	if used < limit {
		return StatusHealthy
	}
	return StatusWarning
}
