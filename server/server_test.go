package server

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecosort-gateway/classifier"
	"ecosort-gateway/middleware/auth"
	"ecosort-gateway/middleware/ratelimit/infra"
	"ecosort-gateway/monitoring"
	"ecosort-gateway/pipeline"
	"ecosort-gateway/validation"
)

type fixedRandom float64

func (f fixedRandom) Float64() float64 { return float64(f) }

type stubProbe struct{}

func (stubProbe) System(context.Context) (monitoring.SystemMetrics, error) {
	return monitoring.SystemMetrics{CPUPercent: 3, MemoryPercent: 40, DiskUsagePercent: 50}, nil
}

func (stubProbe) Disk(context.Context) (monitoring.DiskUsage, error) {
	return monitoring.DiskUsage{UsedPercent: 50, FreeGB: 10, TotalGB: 20}, nil
}

func (stubProbe) Memory(context.Context) (monitoring.MemoryUsage, error) {
	return monitoring.MemoryUsage{UsedPercent: 40, AvailableGB: 6, TotalGB: 10}, nil
}

type setup struct {
	apiKey         string
	perMinute      int
	maxFileSize    int64
	metricsEnabled bool
	registry       *prometheus.Registry
}

type fixture struct {
	handler http.Handler
	metrics *monitoring.Aggregator
	stats   *infra.MemoryStatsStore
}

func newFixture(t *testing.T, s setup) fixture {
	t.Helper()
	if s.perMinute == 0 {
		s.perMinute = 100
	}
	if s.maxFileSize == 0 {
		s.maxFileSize = validation.DefaultMaxFileSize
	}

	aggOpts := []monitoring.AggregatorOption{monitoring.WithProbe(stubProbe{})}
	if s.registry != nil {
		aggOpts = append(aggOpts, monitoring.WithRegisterer(s.registry))
	}
	metrics := monitoring.NewAggregator(aggOpts...)
	limiter := infra.NewSlidingWindow(s.perMinute, time.Minute)
	stats := infra.NewMemoryStatsStore()

	p := pipeline.Build(pipeline.Deps{
		Gate:      auth.NewGate(s.apiKey),
		Limiter:   limiter,
		Stats:     stats,
		Validator: validation.New(validation.WithMaxFileSize(s.maxFileSize)),
		Scorer:    classifier.NewScorer(classifier.WithRandom(fixedRandom(0))),
		Metrics:   metrics,
	})

	opts := Options{
		Info: Info{
			Environment:        "test",
			APIKeyEnabled:      s.apiKey != "",
			RateLimitEnabled:   true,
			RateLimitPerMinute: s.perMinute,
			MetricsEnabled:     s.metricsEnabled,
			MaxFileSize:        s.maxFileSize,
		},
		Pipeline:            p,
		Metrics:             metrics,
		Health:              monitoring.NewHealthChecker(stubProbe{}, metrics),
		Alerts:              monitoring.NewAlertManager(),
		Limiter:             limiter,
		AddRateLimitHeaders: true,
		AdmissionReport: func(context.Context) (any, error) {
			return stats.Snapshot(), nil
		},
	}
	if s.registry != nil {
		opts.Prometheus = promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	}

	return fixture{handler: New(opts).Handler(), metrics: metrics, stats: stats}
}

func (f fixture) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func textReq(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/classify-text", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.10:4321"
	return req
}

func imageReq(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/classify-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "192.0.2.20:4321"
	return req
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data in %v", body)
	return d
}

func TestInfo(t *testing.T) {
	f := newFixture(t, setup{apiKey: "k"})
	rec, body := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])
	assert.NotZero(t, body["timestamp"])
	d := data(t, body)
	assert.Equal(t, ServiceName, d["service"])
	assert.Equal(t, "test", d["environment"])
	assert.Equal(t, true, d["features"].(map[string]any)["api_authentication"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestProbes(t *testing.T) {
	f := newFixture(t, setup{})

	_, body := f.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, "ready", body["status"])
	_, body = f.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, "alive", body["status"])

	rec, body := f.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", data(t, body)["overall_status"])
}

func TestClassifyText(t *testing.T) {
	f := newFixture(t, setup{})
	rec, body := f.do(t, textReq(`{"text":"plastic bottle"}`))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := data(t, body)
	assert.Equal(t, "recyclable", d["label"])
	assert.Equal(t, 0.95, d["confidence"])
	assert.Equal(t, classifier.DisposalTip(classifier.Recyclable), d["tip"])
	assert.Equal(t, "plastic bottle", d["input_text"])

	snap := f.metrics.Snapshot(context.Background())
	assert.Equal(t, uint64(1), snap.RequestsByEndpoint["POST:/classify-text"])
	assert.Equal(t, uint64(1), snap.ClassificationStats["text:recyclable"])
}

func TestClassifyText_EchoIsTruncated(t *testing.T) {
	f := newFixture(t, setup{})
	long := "banana " + strings.Repeat("x", 150)
	_, body := f.do(t, textReq(`{"text":"`+long+`"}`))

	echo := data(t, body)["input_text"].(string)
	assert.Equal(t, long[:100]+"...", echo)
}

func TestClassifyText_InvalidInput(t *testing.T) {
	f := newFixture(t, setup{})

	cases := map[string]string{
		`{}`:                 "No text provided",
		`not json`:           "No text provided",
		`{"text": 3}`:        "No text provided",
		`{"text":"   "}`:     "Empty or invalid text provided",
		`{"text":"<script"}`: "Empty or invalid text provided",
	}
	for payload, reason := range cases {
		rec, body := f.do(t, textReq(payload))
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, reason, body["error"], payload)
	}
}

func TestClassifyText_Unauthorized(t *testing.T) {
	f := newFixture(t, setup{apiKey: "s3cret"})

	rec, body := f.do(t, textReq(`{"text":"plastic"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", body["error"])
	assert.Equal(t, "Valid API key required", body["message"])

	req := textReq(`{"text":"plastic"}`)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec, _ = f.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = textReq(`{"text":"plastic"}`)
	req.Header.Set("X-API-Key", "s3cret")
	rec, _ = f.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// rejeitado na autenticação não consome a janela do limiter
	assert.Equal(t, int64(2), f.stats.Total().Allowed)
	assert.Equal(t, int64(0), f.stats.Total().Denied)
}

func TestClassifyText_RateLimited(t *testing.T) {
	f := newFixture(t, setup{perMinute: 2})

	for i := 0; i < 2; i++ {
		rec, _ := f.do(t, textReq(`{"text":"can"}`))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec, body := f.do(t, textReq(`{"text":"can"}`))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Rate limit exceeded", body["error"])
	assert.Equal(t, "Maximum 2 requests per minute allowed", body["message"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// outra chave não é afetada
	other := textReq(`{"text":"can"}`)
	other.RemoteAddr = "198.51.100.7:1"
	rec, _ = f.do(t, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClassifyImage(t *testing.T) {
	f := newFixture(t, setup{})
	rec, body := f.do(t, imageReq(t, "image", "../My Photo!.png", pngOf(t, 64, 32)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := data(t, body)
	assert.Equal(t, "recyclable", d["label"])
	assert.Equal(t, 0.75, d["confidence"])
	assert.Equal(t, map[string]any{
		"filename": "My_Photo.png",
		"size":     "64x32",
		"format":   "PNG",
	}, d["image_info"])

	snap := f.metrics.Snapshot(context.Background())
	assert.Equal(t, uint64(1), snap.ClassificationStats["image:recyclable"])
}

func TestClassifyImage_FileFieldFallback(t *testing.T) {
	f := newFixture(t, setup{})
	rec, _ := f.do(t, imageReq(t, "file", "a.gif.png", pngOf(t, 8, 8)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClassifyImage_Rejections(t *testing.T) {
	f := newFixture(t, setup{})
	sample := pngOf(t, 8, 8)

	cases := []struct {
		name   string
		req    *http.Request
		status int
		reason string
	}{
		{"no file", imageReq(t, "", "", nil), http.StatusBadRequest, "No image file provided"},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/classify-image", strings.NewReader("x")), http.StatusBadRequest, "No image file provided"},
		{"empty filename", imageReq(t, "image", "", sample), http.StatusBadRequest, "No file selected"},
		{"wrong extension", imageReq(t, "image", "notes.txt", sample), http.StatusBadRequest, "File type not allowed. Allowed types: bmp, gif, jpeg, jpg, png, webp"},
		{"not an image", imageReq(t, "image", "fake.png", []byte("hello")), http.StatusBadRequest, "Invalid image file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := f.do(t, tc.req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.reason, body["error"])
		})
	}
}

func TestClassifyImage_TooLarge(t *testing.T) {
	f := newFixture(t, setup{maxFileSize: 1024})

	// acima do teto mas dentro da folga do multipart: o validador responde
	rec, body := f.do(t, imageReq(t, "image", "big.png", bytes.Repeat([]byte{0x89}, 4096)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File too large. Maximum size: 0.0MB", body["error"])

	// corpo maior que teto+folga: cortado na leitura
	rec, body = f.do(t, imageReq(t, "image", "huge.png", bytes.Repeat([]byte{0x89}, 3<<20)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "File too large", body["error"])
}

func TestMetricsEndpoints(t *testing.T) {
	off := newFixture(t, setup{})
	rec, body := off.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Metrics disabled", body["error"])

	reg := prometheus.NewRegistry()
	on := newFixture(t, setup{metricsEnabled: true, registry: reg})
	on.do(t, textReq(`{"text":"paper"}`))
	on.do(t, textReq(`{}`))

	rec, body = on.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	d := data(t, body)
	m := d["metrics"].(map[string]any)
	assert.Equal(t, 2.0, m["total_requests"])
	assert.Equal(t, 1.0, m["total_errors"])
	assert.Equal(t, 50.0, m["error_rate_percent"])
	assert.Contains(t, d, "admission")

	rec, _ = on.do(t, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `ecosort_http_requests_total{endpoint="/classify-text",method="POST"} 2`)

	rec, body = on.do(t, httptest.NewRequest(http.MethodGet, "/alerts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := data(t, body)["alerts"].([]any)
	require.NotEmpty(t, alerts)
	assert.Equal(t, monitoring.AlertErrorRate, alerts[0].(map[string]any)["type"])
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	f := newFixture(t, setup{})

	rec, body := f.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Endpoint not found", body["error"])

	rec, body = f.do(t, httptest.NewRequest(http.MethodGet, "/classify-text", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", body["error"])

	snap := f.metrics.Snapshot(context.Background())
	assert.Equal(t, uint64(1), snap.ErrorsByType["404:unknown"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	f := newFixture(t, setup{})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")

	rec, _ := f.do(t, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestSecureFilename(t *testing.T) {
	cases := map[string]string{
		"photo.png":                "photo.png",
		"../../etc/passwd":         "passwd",
		`C:\Users\me\My Photo.JPG`: "My_Photo.JPG",
		"..":                       "",
		"über café.png":            "ber_caf.png",
	}
	for in, want := range cases {
		assert.Equal(t, want, secureFilename(in), in)
	}
}

func TestEcho(t *testing.T) {
	assert.Equal(t, "short", echo("short"))
	assert.Equal(t, strings.Repeat("é", 100)+"...", echo(strings.Repeat("é", 101)))
}
