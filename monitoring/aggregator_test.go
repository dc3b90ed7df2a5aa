package monitoring

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_EmptySnapshot(t *testing.T) {
	snap := NewAggregator().Snapshot(context.Background())

	assert.Zero(t, snap.TotalRequests)
	assert.Zero(t, snap.TotalErrors)
	assert.Equal(t, 0.0, snap.ErrorRatePercent)
	assert.Empty(t, snap.ResponseTimes)
	assert.NotNil(t, snap.RequestsByEndpoint)
}

func TestAggregator_CountsAndResponseTimes(t *testing.T) {
	a := NewAggregator()
	a.Record("/classify-text", "POST", 200, 10*time.Millisecond)
	a.Record("/classify-text", "POST", 400, 30*time.Millisecond)
	a.Record("/classify-text", "POST", 200, 20*time.Millisecond)
	a.Record("/health", "GET", 200, time.Millisecond)
	a.RecordClassification("text", "recyclable")
	a.RecordClassification("text", "recyclable")
	a.RecordClassification("image", "hazardous")

	snap := a.Snapshot(context.Background())

	assert.Equal(t, uint64(4), snap.TotalRequests)
	assert.Equal(t, uint64(1), snap.TotalErrors)
	assert.Equal(t, 25.0, snap.ErrorRatePercent)
	assert.Equal(t, map[string]uint64{"POST:/classify-text": 3, "GET:/health": 1}, snap.RequestsByEndpoint)
	assert.Equal(t, map[string]uint64{"400:/classify-text": 1}, snap.ErrorsByType)
	assert.Equal(t, map[string]uint64{"text:recyclable": 2, "image:hazardous": 1}, snap.ClassificationStats)
	assert.Equal(t, ResponseTime{Avg: 20, Min: 10, Max: 30, Count: 3}, snap.ResponseTimes["/classify-text"])
	assert.Equal(t, ResponseTime{Avg: 1, Min: 1, Max: 1, Count: 1}, snap.ResponseTimes["/health"])
}

func TestAggregator_SnapshotDoesNotAlias(t *testing.T) {
	a := NewAggregator()
	a.Record("/", "GET", 200, time.Millisecond)

	snap := a.Snapshot(context.Background())
	snap.RequestsByEndpoint["GET:/"] = 99

	again := a.Snapshot(context.Background())
	assert.Equal(t, uint64(1), again.RequestsByEndpoint["GET:/"])
}

func TestAggregator_ConcurrentRecordsAreNotLost(t *testing.T) {
	a := NewAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				status := 200
				if j%10 == 0 {
					status = 500
				}
				a.Record(fmt.Sprintf("/e%d", i%5), "GET", status, time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	snap := a.Snapshot(context.Background())
	require.Equal(t, uint64(5000), snap.TotalRequests)
	require.Equal(t, uint64(500), snap.TotalErrors)
	assert.LessOrEqual(t, snap.TotalErrors, snap.TotalRequests)
	assert.Equal(t, 10.0, snap.ErrorRatePercent)
}

func TestAggregator_UsesProbeAndTolerantToFailure(t *testing.T) {
	probe := &fakeProbe{sys: SystemMetrics{CPUPercent: 12.5, MemoryPercent: 40}, err: errProbe}
	a := NewAggregator(WithProbe(probe))

	snap := a.Snapshot(context.Background())
	assert.Equal(t, 1, probe.calls)
	assert.Equal(t, 12.5, snap.SystemMetrics.CPUPercent)
}

func TestAggregator_UptimeFromClock(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAggregator(WithClock(func() time.Time { return now }))
	now = now.Add(90 * time.Minute)

	assert.Equal(t, 90*time.Minute, a.Uptime())
	assert.Equal(t, 5400.0, a.Snapshot(context.Background()).UptimeSeconds)
}

func TestAggregator_MirrorsIntoPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewAggregator(WithRegisterer(reg), WithProbe(&fakeProbe{sys: SystemMetrics{DiskUsagePercent: 70}}))

	a.Record("/classify-text", "POST", 200, 5*time.Millisecond)
	a.Record("/classify-text", "POST", 429, 5*time.Millisecond)
	a.RecordClassification("text", "recyclable")
	a.Snapshot(context.Background())

	assert.Equal(t, 2.0, testutil.ToFloat64(a.prom.requests.WithLabelValues("POST", "/classify-text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.prom.errors.WithLabelValues("429", "/classify-text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.prom.classifications.WithLabelValues("text", "recyclable")))
	assert.Equal(t, 70.0, testutil.ToFloat64(a.prom.system.WithLabelValues("disk_percent")))

	expected := `
# HELP ecosort_classifications_total Classification results, by modality and category.
# TYPE ecosort_classifications_total counter
ecosort_classifications_total{category="recyclable",modality="text"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ecosort_classifications_total"))
}
