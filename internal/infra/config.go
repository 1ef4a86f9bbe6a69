package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	DBMaxConns         int
	DBAutoMigrate      bool
	RedisURL           string
	LedgerBackend      string
	JWTSecret          string
	StoragePath        string
	StorageBaseURL     string
	CORSAllowedOrigins []string
	PricingFile        string

	GeminiAPIKey        string
	GeminiModel         string
	GeminiBaseURL       string
	ReplicateAPIToken   string
	ReplicateBaseURL    string
	ReplicateModel      string
	ReplicateMultiModel string
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIBaseURL       string

	TextRPMLimit        int
	WorkerPollInterval  time.Duration
	StatusTTL           time.Duration
	DownloadMaxAttempts int
	DownloadBackoff     time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

const (
	LedgerBackendPostgres = "postgres"
	LedgerBackendRedis    = "redis"
)

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               port,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 10),
		DBAutoMigrate:      getEnvBool("DB_AUTO_MIGRATE", false),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		LedgerBackend:      strings.ToLower(getEnv("LEDGER_BACKEND", LedgerBackendPostgres)),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:     getEnv("STORAGE_BASE_URL", fmt.Sprintf("http://localhost:%s/static", port)),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		PricingFile:        os.Getenv("PRICING_FILE"),

		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ReplicateAPIToken:   os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:    getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModel:      getEnv("REPLICATE_MODEL", "black-forest-labs/flux-kontext-pro"),
		ReplicateMultiModel: getEnv("REPLICATE_MULTI_MODEL", "flux-kontext-apps/multi-image-kontext-pro"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		TextRPMLimit:        getEnvInt("TEXT_RPM_LIMIT", 10),
		WorkerPollInterval:  getEnvDuration("WORKER_POLL_INTERVAL", time.Second),
		StatusTTL:           getEnvDuration("STATUS_TTL", time.Hour),
		DownloadMaxAttempts: getEnvInt("DOWNLOAD_MAX_ATTEMPTS", 3),
		DownloadBackoff:     getEnvDuration("DOWNLOAD_BACKOFF", 2*time.Second),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.LedgerBackend {
	case LedgerBackendPostgres, LedgerBackendRedis:
	default:
		return nil, fmt.Errorf("LEDGER_BACKEND %q is not supported", cfg.LedgerBackend)
	}

	if cfg.TextRPMLimit <= 0 {
		return nil, fmt.Errorf("TEXT_RPM_LIMIT must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
