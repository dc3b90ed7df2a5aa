package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	algorithmSliding     = "sliding"
	algorithmTokenBucket = "token-bucket"
)

type config struct {
	appEnv     string
	listenAddr string
	apiKey     string

	rateEnabled      bool
	ratePerMinute    int
	rateWindow       time.Duration
	rateAlgorithm    string
	rateIdleTTL      time.Duration
	rateCleanupEvery time.Duration
	rateKeyHeader    string
	trustXFF         bool
	retryAfter       time.Duration
	addHeaders       bool

	concurrencyMax     int
	concurrencyTimeout time.Duration

	maxFileSizeMB     int
	allowedExtensions []string
	keywordsFile      string
	classifierSeed    uint64

	enableMetrics bool
	diskPath      string
	logLevel      string
	logFormat     string

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
}

// loadEnvFile popula o ambiente a partir de um .env. Arquivo ausente não é erro;
// variáveis já definidas no processo têm prioridade.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.appEnv = getenvDefault("APP_ENV", "development")
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":5000")
	cfg.apiKey = os.Getenv("API_KEY")

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.ratePerMinute = getenvIntDefault("RATE_LIMIT_PER_MINUTE", 60)
	cfg.rateWindow = getenvDurationDefault("RATE_WINDOW", time.Minute)
	cfg.rateAlgorithm = strings.ToLower(getenvDefault("RATE_ALGORITHM", algorithmSliding))
	cfg.rateIdleTTL = getenvDurationDefault("RATE_IDLE_TTL", 15*time.Minute)
	cfg.rateCleanupEvery = getenvDurationDefault("RATE_CLEANUP_EVERY", 2*time.Minute)
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	// atrás de proxy reverso o cliente real vem no X-Forwarded-For
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", true)
	// 0 = calcula a partir da janela
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 0)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.maxFileSizeMB = getenvIntDefault("MAX_FILE_SIZE_MB", 16)
	cfg.allowedExtensions = getenvListDefault("ALLOWED_EXTENSIONS", []string{"png", "jpg", "jpeg", "gif", "bmp", "webp"})
	cfg.keywordsFile = os.Getenv("KEYWORDS_FILE")
	cfg.classifierSeed = getenvUintDefault("CLASSIFIER_SEED", 0)

	cfg.enableMetrics = getenvBoolDefault("ENABLE_METRICS", false)
	cfg.diskPath = getenvDefault("DISK_PATH", "/")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.logFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "text"))

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ecosort:admission")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	if err := cfg.validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) validate() error {
	if c.ratePerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be > 0")
	}
	if c.rateWindow <= 0 {
		return errors.New("RATE_WINDOW must be > 0")
	}
	if c.rateAlgorithm != algorithmSliding && c.rateAlgorithm != algorithmTokenBucket {
		return fmt.Errorf("RATE_ALGORITHM must be %q or %q, got %q", algorithmSliding, algorithmTokenBucket, c.rateAlgorithm)
	}
	if c.maxFileSizeMB <= 0 {
		return errors.New("MAX_FILE_SIZE_MB must be > 0")
	}
	if len(c.allowedExtensions) == 0 {
		return errors.New("ALLOWED_EXTENSIONS must list at least one extension")
	}
	if c.concurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.logFormat != "text" && c.logFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.logFormat)
	}
	if c.rateStatsEnabled && strings.TrimSpace(c.rateStatsRedisAddr) == "" {
		return errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	return nil
}

func (c config) production() bool {
	return strings.EqualFold(c.appEnv, "production")
}

func (c config) maxFileSize() int64 {
	return int64(c.maxFileSizeMB) << 20
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvUintDefault(k string, def uint64) uint64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	u, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return u
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// getenvListDefault lê uma lista separada por vírgula, ignorando itens vazios.
func getenvListDefault(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
