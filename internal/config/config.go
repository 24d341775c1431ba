// Пакет config — загрузка и валидация конфигурации File Tracker
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Драйверы хранилища.
const (
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Режимы развёртывания.
const (
	// DeployServer — долгоживущий процесс: при старте создаются индексы и выполняется обслуживание
	DeployServer = "server"
	// DeployServerless — функция: обслуживание пропускается ради времени старта
	DeployServerless = "serverless"
)

// Config содержит все параметры конфигурации File Tracker.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Внешний адрес сервиса для QR-ссылок; пусто — вычисляется из запроса
	PublicBaseURL string
	// Отдавать текст исходной ошибки в JSON-ответах
	DebugErrors bool

	// --- Хранилище ---

	// Драйвер: mongodb, postgres, memory
	StoreDriver string
	// Строка подключения MongoDB
	MongoURI string
	// Имя базы MongoDB
	MongoDatabase string
	// Максимальный размер пула MongoDB
	MongoMaxPoolSize uint64
	// Таймаут выбора сервера MongoDB
	MongoServerSelectionTimeout time.Duration
	// URL PostgreSQL (postgres://...)
	PostgresURL string

	// --- Режим развёртывания ---

	// server или serverless
	DeployMode string
	// Удалять при старте записи без fileNumber/serialNumber
	CleanupOnStart bool

	// --- Бизнес-логика ---

	// TTL кэша настроек
	SettingsCacheTTL time.Duration
	// Окно защиты от повторной отправки формы
	SubmissionWindow time.Duration
	// Время хранения отметок о повторной отправке
	SubmissionRetention time.Duration
	// Число попыток сохранения при конфликте серийного номера
	SerialMaxAttempts int
	// Базовая пауза между попытками
	SerialRetryBackoff time.Duration

	// --- Circuit breaker ---

	BreakerEnabled      bool
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration

	// --- События (NATS) ---

	// URL NATS; пусто — публикация отключена
	NATSURL string
	// Префикс subject событий
	NATSSubjectPrefix string
	// HTTP monitoring endpoint NATS для мониторинга зависимостей
	NATSMonitorURL string

	// --- Мониторинг зависимостей (topologymetrics) ---

	DephealthEnabled       bool
	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Serverless сообщает, запущен ли сервис в режиме serverless.
func (c *Config) Serverless() bool {
	return c.DeployMode == DeployServerless
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PORT — порт HTTP-сервера (по умолчанию 3000)
	cfg.Port, err = getEnvInt("PORT", 3000)
	if err != nil {
		return nil, fmt.Errorf("PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FT_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FT_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("FT_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FT_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// FT_PUBLIC_BASE_URL — внешний адрес (опционально), без trailing slash
	cfg.PublicBaseURL = strings.TrimRight(getEnvDefault("FT_PUBLIC_BASE_URL", ""), "/")
	if cfg.PublicBaseURL != "" {
		u, perr := url.Parse(cfg.PublicBaseURL)
		if perr != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("FT_PUBLIC_BASE_URL: некорректный URL %q", cfg.PublicBaseURL)
		}
	}

	cfg.DebugErrors, err = getEnvBool("FT_DEBUG_ERRORS", false)
	if err != nil {
		return nil, fmt.Errorf("FT_DEBUG_ERRORS: %w", err)
	}

	// --- Хранилище ---

	cfg.StoreDriver = getEnvDefault("FT_STORE_DRIVER", DriverMongoDB)
	switch cfg.StoreDriver {
	case DriverMongoDB:
		// MONGODB_URI — обязательный для драйвера mongodb
		cfg.MongoURI, err = getEnvRequired("MONGODB_URI")
		if err != nil {
			return nil, err
		}
	case DriverPostgres:
		// FT_POSTGRES_URL — обязательный для драйвера postgres
		cfg.PostgresURL, err = getEnvRequired("FT_POSTGRES_URL")
		if err != nil {
			return nil, err
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("FT_STORE_DRIVER: недопустимое значение %q, допустимые: mongodb, postgres, memory", cfg.StoreDriver)
	}

	cfg.MongoDatabase = getEnvDefault("FT_MONGODB_DATABASE", "fileTracker")

	poolSize, err := getEnvInt("FT_MONGODB_MAX_POOL_SIZE", 10)
	if err != nil {
		return nil, fmt.Errorf("FT_MONGODB_MAX_POOL_SIZE: %w", err)
	}
	if poolSize < 1 {
		return nil, fmt.Errorf("FT_MONGODB_MAX_POOL_SIZE: значение %d должно быть положительным", poolSize)
	}
	cfg.MongoMaxPoolSize = uint64(poolSize)

	cfg.MongoServerSelectionTimeout, err = getEnvDuration("FT_MONGODB_SERVER_SELECTION_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FT_MONGODB_SERVER_SELECTION_TIMEOUT: %w", err)
	}

	// --- Режим развёртывания ---

	// FT_DEPLOY_MODE — по умолчанию serverless, если задана VERCEL
	defaultMode := DeployServer
	if os.Getenv("VERCEL") != "" {
		defaultMode = DeployServerless
	}
	cfg.DeployMode = getEnvDefault("FT_DEPLOY_MODE", defaultMode)
	if cfg.DeployMode != DeployServer && cfg.DeployMode != DeployServerless {
		return nil, fmt.Errorf("FT_DEPLOY_MODE: недопустимое значение %q, допустимые: server, serverless", cfg.DeployMode)
	}

	cfg.CleanupOnStart, err = getEnvBool("FT_CLEANUP_ON_START", false)
	if err != nil {
		return nil, fmt.Errorf("FT_CLEANUP_ON_START: %w", err)
	}

	// --- Бизнес-логика ---

	cfg.SettingsCacheTTL, err = getEnvDuration("FT_SETTINGS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FT_SETTINGS_CACHE_TTL: %w", err)
	}

	cfg.SubmissionWindow, err = getEnvDuration("FT_SUBMISSION_WINDOW", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FT_SUBMISSION_WINDOW: %w", err)
	}
	cfg.SubmissionRetention, err = getEnvDuration("FT_SUBMISSION_RETENTION", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FT_SUBMISSION_RETENTION: %w", err)
	}
	if cfg.SubmissionRetention < cfg.SubmissionWindow {
		return nil, fmt.Errorf("FT_SUBMISSION_RETENTION: %v меньше окна FT_SUBMISSION_WINDOW %v",
			cfg.SubmissionRetention, cfg.SubmissionWindow)
	}

	cfg.SerialMaxAttempts, err = getEnvInt("FT_SERIAL_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("FT_SERIAL_MAX_ATTEMPTS: %w", err)
	}
	if cfg.SerialMaxAttempts < 1 || cfg.SerialMaxAttempts > 10 {
		return nil, fmt.Errorf("FT_SERIAL_MAX_ATTEMPTS: значение %d вне допустимого диапазона 1-10", cfg.SerialMaxAttempts)
	}
	cfg.SerialRetryBackoff, err = getEnvDuration("FT_SERIAL_RETRY_BACKOFF", 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("FT_SERIAL_RETRY_BACKOFF: %w", err)
	}

	// --- Circuit breaker ---

	cfg.BreakerEnabled, err = getEnvBool("FT_BREAKER_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("FT_BREAKER_ENABLED: %w", err)
	}
	cfg.BreakerMinRequests, err = getEnvInt("FT_BREAKER_MIN_REQUESTS", 10)
	if err != nil {
		return nil, fmt.Errorf("FT_BREAKER_MIN_REQUESTS: %w", err)
	}
	if cfg.BreakerMinRequests < 1 {
		return nil, fmt.Errorf("FT_BREAKER_MIN_REQUESTS: значение %d должно быть положительным", cfg.BreakerMinRequests)
	}
	cfg.BreakerFailureRatio, err = getEnvFloat("FT_BREAKER_FAILURE_RATIO", 0.5)
	if err != nil {
		return nil, fmt.Errorf("FT_BREAKER_FAILURE_RATIO: %w", err)
	}
	if cfg.BreakerFailureRatio <= 0 || cfg.BreakerFailureRatio > 1 {
		return nil, fmt.Errorf("FT_BREAKER_FAILURE_RATIO: значение %v вне диапазона (0, 1]", cfg.BreakerFailureRatio)
	}
	cfg.BreakerOpenTimeout, err = getEnvDuration("FT_BREAKER_OPEN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FT_BREAKER_OPEN_TIMEOUT: %w", err)
	}

	// --- События ---

	cfg.NATSURL = getEnvDefault("FT_NATS_URL", "")
	cfg.NATSSubjectPrefix = getEnvDefault("FT_NATS_SUBJECT_PREFIX", "filetracker")
	cfg.NATSMonitorURL = strings.TrimRight(getEnvDefault("FT_NATS_MONITOR_URL", ""), "/")

	// --- Мониторинг зависимостей ---

	cfg.DephealthEnabled, err = getEnvBool("FT_DEPHEALTH_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("FT_DEPHEALTH_ENABLED: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("FT_DEPHEALTH_GROUP", "filetracker")
	cfg.DephealthCheckInterval, err = getEnvDuration("FT_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FT_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("FT_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FT_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvFloat возвращает дробное значение переменной окружения или значение по умолчанию.
func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
