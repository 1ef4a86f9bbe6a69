package infra

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")
	t.Setenv("TEXT_RPM_LIMIT", "")
	t.Setenv("STATUS_TTL", "")
	t.Setenv("LEDGER_BACKEND", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
	if cfg.TextRPMLimit != 10 {
		t.Fatalf("TextRPMLimit = %d, want 10", cfg.TextRPMLimit)
	}
	if cfg.StatusTTL != time.Hour {
		t.Fatalf("StatusTTL = %s, want 1h", cfg.StatusTTL)
	}
	if cfg.DownloadMaxAttempts != 3 || cfg.DownloadBackoff != 2*time.Second {
		t.Fatalf("download policy = %d/%s, want 3/2s", cfg.DownloadMaxAttempts, cfg.DownloadBackoff)
	}
	if cfg.LedgerBackend != LedgerBackendPostgres {
		t.Fatalf("LedgerBackend = %q", cfg.LedgerBackend)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:1919/static" {
		t.Fatalf("StorageBaseURL mismatch: got %q", cfg.StorageBaseURL)
	}
}

func TestLoadConfigParsesOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TEXT_RPM_LIMIT", "3")
	t.Setenv("WORKER_POLL_INTERVAL", "250ms")
	t.Setenv("LEDGER_BACKEND", "Redis")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	t.Setenv("DB_AUTO_MIGRATE", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.TextRPMLimit != 3 {
		t.Fatalf("TextRPMLimit = %d", cfg.TextRPMLimit)
	}
	if cfg.WorkerPollInterval != 250*time.Millisecond {
		t.Fatalf("WorkerPollInterval = %s", cfg.WorkerPollInterval)
	}
	if cfg.LedgerBackend != LedgerBackendRedis {
		t.Fatalf("LedgerBackend = %q", cfg.LedgerBackend)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("CORSAllowedOrigins = %#v", cfg.CORSAllowedOrigins)
	}
	if !cfg.DBAutoMigrate {
		t.Fatalf("DBAutoMigrate not parsed")
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("LEDGER_BACKEND", "mysql")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unsupported ledger backend")
	}

	t.Setenv("LEDGER_BACKEND", "")
	t.Setenv("TEXT_RPM_LIMIT", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for zero rpm")
	}

	t.Setenv("TEXT_RPM_LIMIT", "")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for missing JWT_SECRET")
	}
}
