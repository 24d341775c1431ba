package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"MONGODB_URI": "mongodb://localhost:27017",
		"VERCEL":      "",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, ожидается 3000", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.StoreDriver != DriverMongoDB {
		t.Errorf("StoreDriver = %q, ожидается mongodb", cfg.StoreDriver)
	}
	if cfg.MongoDatabase != "fileTracker" {
		t.Errorf("MongoDatabase = %q, ожидается fileTracker", cfg.MongoDatabase)
	}
	if cfg.MongoMaxPoolSize != 10 {
		t.Errorf("MongoMaxPoolSize = %d, ожидается 10", cfg.MongoMaxPoolSize)
	}
	if cfg.MongoServerSelectionTimeout != 5*time.Second {
		t.Errorf("MongoServerSelectionTimeout = %v, ожидается 5s", cfg.MongoServerSelectionTimeout)
	}
	if cfg.DeployMode != DeployServer || cfg.Serverless() {
		t.Errorf("DeployMode = %q, ожидается server", cfg.DeployMode)
	}
	if cfg.SettingsCacheTTL != 5*time.Minute {
		t.Errorf("SettingsCacheTTL = %v, ожидается 5m", cfg.SettingsCacheTTL)
	}
	if cfg.SubmissionWindow != 5*time.Second || cfg.SubmissionRetention != time.Minute {
		t.Errorf("SubmissionWindow/Retention = %v/%v, ожидается 5s/60s", cfg.SubmissionWindow, cfg.SubmissionRetention)
	}
	if cfg.SerialMaxAttempts != 3 || cfg.SerialRetryBackoff != 50*time.Millisecond {
		t.Errorf("SerialMaxAttempts/Backoff = %d/%v", cfg.SerialMaxAttempts, cfg.SerialRetryBackoff)
	}
	if !cfg.BreakerEnabled || cfg.BreakerMinRequests != 10 || cfg.BreakerFailureRatio != 0.5 {
		t.Errorf("breaker = %v/%d/%v", cfg.BreakerEnabled, cfg.BreakerMinRequests, cfg.BreakerFailureRatio)
	}
	if cfg.NATSURL != "" || cfg.NATSSubjectPrefix != "filetracker" {
		t.Errorf("NATS = %q/%q", cfg.NATSURL, cfg.NATSSubjectPrefix)
	}
	if cfg.DebugErrors {
		t.Error("DebugErrors по умолчанию должен быть false")
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_VercelDefaultsToServerless(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("VERCEL", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if !cfg.Serverless() {
		t.Errorf("DeployMode = %q, ожидается serverless", cfg.DeployMode)
	}

	// Явный режим важнее VERCEL
	t.Setenv("FT_DEPLOY_MODE", "server")
	cfg, _ = Load()
	if cfg.Serverless() {
		t.Error("FT_DEPLOY_MODE=server должен переопределять VERCEL")
	}
}

func TestLoad_Drivers(t *testing.T) {
	t.Setenv("VERCEL", "")
	t.Setenv("MONGODB_URI", "")

	t.Setenv("FT_STORE_DRIVER", "memory")
	if _, err := Load(); err != nil {
		t.Errorf("memory без строк подключения: %v", err)
	}

	t.Setenv("FT_STORE_DRIVER", "postgres")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "FT_POSTGRES_URL") {
		t.Errorf("ожидалась ошибка FT_POSTGRES_URL, получено %v", err)
	}
	t.Setenv("FT_POSTGRES_URL", "postgres://u:p@localhost/ft")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	if cfg.PostgresURL != "postgres://u:p@localhost/ft" {
		t.Errorf("PostgresURL = %q", cfg.PostgresURL)
	}

	t.Setenv("FT_STORE_DRIVER", "mongodb")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "MONGODB_URI") {
		t.Errorf("ожидалась ошибка MONGODB_URI, получено %v", err)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"порт вне диапазона", "PORT", "70000"},
		{"порт не число", "PORT", "abc"},
		{"уровень логов", "FT_LOG_LEVEL", "trace"},
		{"формат логов", "FT_LOG_FORMAT", "xml"},
		{"драйвер", "FT_STORE_DRIVER", "redis"},
		{"режим", "FT_DEPLOY_MODE", "lambda"},
		{"TTL", "FT_SETTINGS_CACHE_TTL", "5 minutes"},
		{"попытки", "FT_SERIAL_MAX_ATTEMPTS", "0"},
		{"доля отказов", "FT_BREAKER_FAILURE_RATIO", "1.5"},
		{"булево", "FT_DEBUG_ERRORS", "maybe"},
		{"базовый URL", "FT_PUBLIC_BASE_URL", "files.example.com"},
		{"retention меньше окна", "FT_SUBMISSION_RETENTION", "1s"},
		{"размер пула", "FT_MONGODB_MAX_POOL_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, minimalEnvs())
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%q: ожидалась ошибка", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_PublicBaseURLTrimmed(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("FT_PUBLIC_BASE_URL", "https://files.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.PublicBaseURL != "https://files.example.com" {
		t.Errorf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
}
