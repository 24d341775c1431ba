// dephealth.go — мониторинг зависимостей через topologymetrics SDK.
//
// File Tracker мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical),
//     только при FT_STORE_DRIVER=postgres;
//   - NATS — HTTP checker к monitoring endpoint (/healthz), если задан FT_NATS_MONITOR_URL.
//
// Метрики доступны на /metrics:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для NATS
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrNoDependencies — нечего мониторить.
var ErrNoDependencies = errors.New("не задано ни одной зависимости для мониторинга")

// DephealthTargets — зависимости, которые нужно мониторить.
type DephealthTargets struct {
	// PostgresDB — *sql.DB из pgxpool (stdlib.OpenDBFromPool); nil — не мониторить
	PostgresDB *sql.DB
	// PostgresURL — URL подключения (только для лейблов метрик)
	PostgresURL string
	// NATSMonitorURL — HTTP monitoring endpoint NATS, например http://nats:8222
	NATSMonitorURL string
}

// DephealthService — сервис мониторинга зависимостей.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга. Метрики регистрируются
// в registerer (nil — глобальный Prometheus registry).
func NewDephealthService(
	serviceID string,
	group string,
	targets DephealthTargets,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	opts := []dephealth.Option{dephealth.WithLogger(logger)}
	if registerer != nil {
		opts = append(opts, dephealth.WithRegisterer(registerer))
	}

	deps := 0
	if targets.PostgresDB != nil {
		opts = append(opts, dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(targets.PostgresDB)),
			dephealth.FromURL(targets.PostgresURL),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(true),
		))
		deps++
	}
	if targets.NATSMonitorURL != "" {
		opts = append(opts, dephealth.HTTP("nats",
			dephealth.FromURL(targets.NATSMonitorURL),
			dephealth.WithHTTPHealthPath("/healthz"),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(false),
		))
		deps++
	}
	if deps == 0 {
		return nil, ErrNoDependencies
	}

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}
	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает состояние зависимостей: имя → ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
