package monitoring

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ResponseTime resume os tempos de um endpoint, em milissegundos.
type ResponseTime struct {
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count uint64  `json:"count"`
}

// Snapshot é uma cópia: ler não altera os contadores.
type Snapshot struct {
	UptimeSeconds       float64                 `json:"uptime_seconds"`
	TotalRequests       uint64                  `json:"total_requests"`
	TotalErrors         uint64                  `json:"total_errors"`
	ErrorRatePercent    float64                 `json:"error_rate_percent"`
	RequestsByEndpoint  map[string]uint64       `json:"requests_by_endpoint"`
	ErrorsByType        map[string]uint64       `json:"errors_by_type"`
	ClassificationStats map[string]uint64       `json:"classification_stats"`
	ResponseTimes       map[string]ResponseTime `json:"response_times"`
	SystemMetrics       SystemMetrics           `json:"system_metrics"`
}

// timing guarda agregados corridos em vez da lista de amostras: min, max e
// média saem iguais e a memória fica constante por endpoint.
type timing struct {
	count    uint64
	sum      float64
	min, max float64
}

func (t *timing) add(ms float64) {
	if t.count == 0 || ms < t.min {
		t.min = ms
	}
	if ms > t.max {
		t.max = ms
	}
	t.count++
	t.sum += ms
}

// Aggregator é o único domínio de sincronização das métricas do processo.
type Aggregator struct {
	mu              sync.Mutex
	requests        map[string]uint64
	errors          map[string]uint64
	classifications map[string]uint64
	times           map[string]*timing
	totalRequests   uint64
	totalErrors     uint64

	start time.Time
	now   func() time.Time
	probe SystemProbe
	prom  *promMetrics
	log   *slog.Logger
}

type AggregatorOption func(*Aggregator)

// WithProbe define a fonte dos gauges do host. Sem probe, SystemMetrics sai zerado.
func WithProbe(p SystemProbe) AggregatorOption {
	return func(a *Aggregator) { a.probe = p }
}

func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func WithLogger(l *slog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithRegisterer espelha os contadores em coletores Prometheus registrados em reg.
func WithRegisterer(reg prometheus.Registerer) AggregatorOption {
	return func(a *Aggregator) {
		if reg != nil {
			a.prom = newPromMetrics(reg)
		}
	}
}

func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		requests:        make(map[string]uint64),
		errors:          make(map[string]uint64),
		classifications: make(map[string]uint64),
		times:           make(map[string]*timing),
		now:             time.Now,
		log:             slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.start = a.now()
	return a
}

// Record contabiliza uma requisição concluída. Status >= 400 conta como erro.
func (a *Aggregator) Record(endpoint, method string, status int, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	a.mu.Lock()
	a.requests[method+":"+endpoint]++
	a.totalRequests++
	if status >= 400 {
		a.errors[strconv.Itoa(status)+":"+endpoint]++
		a.totalErrors++
	}
	t, ok := a.times[endpoint]
	if !ok {
		t = &timing{}
		a.times[endpoint] = t
	}
	t.add(ms)
	a.mu.Unlock()

	if a.prom != nil {
		a.prom.observeRequest(endpoint, method, status, d)
	}
}

// RecordClassification contabiliza um resultado por (modalidade, categoria).
func (a *Aggregator) RecordClassification(modality, category string) {
	a.mu.Lock()
	a.classifications[modality+":"+category]++
	a.mu.Unlock()

	if a.prom != nil {
		a.prom.observeClassification(modality, category)
	}
}

func (a *Aggregator) Uptime() time.Duration { return a.now().Sub(a.start) }

// Totals devolve total de requisições, de erros e a taxa de erro (%).
func (a *Aggregator) Totals() (requests, errs uint64, ratePercent float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalRequests, a.totalErrors, errorRate(a.totalRequests, a.totalErrors)
}

// Snapshot copia os contadores e lê os gauges do host. Falha da probe só gera log.
func (a *Aggregator) Snapshot(ctx context.Context) Snapshot {
	a.mu.Lock()
	snap := Snapshot{
		TotalRequests:       a.totalRequests,
		TotalErrors:         a.totalErrors,
		ErrorRatePercent:    errorRate(a.totalRequests, a.totalErrors),
		RequestsByEndpoint:  copyCounts(a.requests),
		ErrorsByType:        copyCounts(a.errors),
		ClassificationStats: copyCounts(a.classifications),
		ResponseTimes:       make(map[string]ResponseTime, len(a.times)),
	}
	for endpoint, t := range a.times {
		snap.ResponseTimes[endpoint] = ResponseTime{
			Avg:   round2(t.sum / float64(t.count)),
			Min:   round2(t.min),
			Max:   round2(t.max),
			Count: t.count,
		}
	}
	a.mu.Unlock()

	snap.UptimeSeconds = round2(a.Uptime().Seconds())

	if a.probe != nil {
		sys, err := a.probe.System(ctx)
		if err != nil {
			a.log.Warn("system metrics partially unavailable", "error", err)
		}
		snap.SystemMetrics = sys
		if a.prom != nil {
			a.prom.observeSystem(sys)
		}
	}
	return snap
}

func errorRate(requests, errs uint64) float64 {
	if requests == 0 {
		return 0
	}
	return round2(float64(errs) / float64(requests) * 100)
}

func copyCounts(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
