// Точка входа File Tracker — учёт физических дел с QR-метками.
// Загружает конфигурацию, подключается к хранилищу (MongoDB, PostgreSQL или память),
// при необходимости оборачивает его circuit breaker'ом, подключает NATS,
// выполняет стартовое обслуживание, запускает topologymetrics
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/bigkaa/filetracker/internal/api/handlers"
	"github.com/bigkaa/filetracker/internal/api/middleware"
	"github.com/bigkaa/filetracker/internal/api/openapi"
	"github.com/bigkaa/filetracker/internal/config"
	"github.com/bigkaa/filetracker/internal/domain/serial"
	"github.com/bigkaa/filetracker/internal/events"
	"github.com/bigkaa/filetracker/internal/server"
	"github.com/bigkaa/filetracker/internal/service"
	"github.com/bigkaa/filetracker/internal/store"
	"github.com/bigkaa/filetracker/internal/store/memstore"
	"github.com/bigkaa/filetracker/internal/store/mongostore"
	"github.com/bigkaa/filetracker/internal/store/pgstore"
	"github.com/bigkaa/filetracker/internal/store/resilient"
)

func main() {
	// .env необязателен: в контейнере переменные задаются окружением
	_ = godotenv.Load()

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("File Tracker запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store", cfg.StoreDriver),
		slog.String("deploy_mode", cfg.DeployMode),
	)

	ctx := context.Background()

	// 3. Хранилище
	st, pool, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к хранилищу", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3.1 Circuit breaker поверх адаптера
	if cfg.BreakerEnabled {
		st = resilient.New(st, resilient.Options{
			Name:         cfg.StoreDriver,
			MinRequests:  uint32(cfg.BreakerMinRequests),
			FailureRatio: cfg.BreakerFailureRatio,
			OpenTimeout:  cfg.BreakerOpenTimeout,
		}, logger)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Warn("Ошибка закрытия хранилища", slog.String("error", err.Error()))
		}
	}()

	// 4. Публикация событий
	var publisher events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(events.NATSOptions{
			URL:           cfg.NATSURL,
			SubjectPrefix: cfg.NATSSubjectPrefix,
		}, logger)
		if err != nil {
			// События не критичны: работаем без них
			logger.Warn("NATS недоступен, события отключены", slog.String("error", err.Error()))
		} else {
			publisher = natsPub
		}
	}
	defer publisher.Close()

	// 5. Сервисы
	settingsSvc := service.NewSettingsService(st, cfg.SettingsCacheTTL, logger)
	qr := service.NewQRRenderer(logger)
	filesSvc := service.NewFileService(
		st,
		settingsSvc,
		service.NewSubmissionGuard(cfg.SubmissionWindow, cfg.SubmissionRetention),
		service.NewSerialAllocator(st, logger),
		qr,
		publisher,
		serial.RetryPolicy{MaxAttempts: cfg.SerialMaxAttempts, Backoff: cfg.SerialRetryBackoff},
		logger,
	)
	maintenanceSvc := service.NewMaintenanceService(st, settingsSvc, logger)

	// 6. Стартовое обслуживание (настройки, индексы, очистка)
	maintenanceSvc.Startup(ctx, service.StartupOptions{
		Serverless: cfg.Serverless(),
		Cleanup:    cfg.CleanupOnStart,
	})

	// 7. topologymetrics
	var deps handlers.DependencyHealth
	if cfg.DephealthEnabled {
		dh, stop := startDephealth(ctx, cfg, pool, logger)
		if dh != nil {
			deps = dh
			defer stop()
		}
	}

	// 8. Handlers
	healthHandler := handlers.NewHealthHandler(st, deps, cfg.StoreDriver)
	apiHandler := handlers.New(filesSvc, settingsSvc, maintenanceSvc, qr, healthHandler,
		handlers.Options{
			PublicBaseURL: cfg.PublicBaseURL,
			DebugErrors:   cfg.DebugErrors,
		},
		logger,
	)

	// 9. Валидация запросов по OpenAPI
	doc, err := openapi.Load()
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-спецификации", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator, err := middleware.OpenAPIValidator(doc, logger)
	if err != nil {
		logger.Error("Ошибка создания OpenAPI-валидатора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(server.Options{
		Port:            cfg.Port,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Validator:       validator,
	}, logger, apiHandler)

	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("File Tracker остановлен")
}

// openStore создаёт адаптер хранилища по cfg.StoreDriver.
// Для PostgreSQL дополнительно возвращает пул (нужен topologymetrics).
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, *pgxpool.Pool, error) {
	switch cfg.StoreDriver {
	case config.DriverMongoDB:
		st, err := mongostore.Connect(ctx, mongostore.Options{
			URI:                    cfg.MongoURI,
			Database:               cfg.MongoDatabase,
			MaxPoolSize:            cfg.MongoMaxPoolSize,
			ServerSelectionTimeout: cfg.MongoServerSelectionTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, nil, nil

	case config.DriverPostgres:
		// Миграции применяются и в serverless-режиме: без схемы сервис не работает
		logger.Info("Применение миграций БД...")
		if err := pgstore.Migrate(cfg.PostgresURL, logger); err != nil {
			return nil, nil, err
		}
		pool, err := pgstore.Connect(ctx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return pgstore.New(pool, logger), pool, nil

	default:
		logger.Warn("Используется хранилище в памяти, данные не сохраняются между запусками")
		return memstore.New(), nil, nil
	}
}

// startDephealth запускает мониторинг зависимостей. Возвращает nil,
// если мониторить нечего или запуск не удался: это не мешает работе сервиса.
func startDephealth(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*service.DephealthService, func()) {
	targets := service.DephealthTargets{NATSMonitorURL: cfg.NATSMonitorURL}

	// Адаптер pgxpool → *sql.DB: проверка идёт через существующий пул
	closeDB := func() {}
	if pool != nil {
		pgDB := stdlib.OpenDBFromPool(pool)
		closeDB = func() { _ = pgDB.Close() }
		targets.PostgresDB = pgDB
		targets.PostgresURL = cfg.PostgresURL
	}

	dh, err := service.NewDephealthService("file-tracker", cfg.DephealthGroup, targets,
		cfg.DephealthCheckInterval, logger, nil)
	if err != nil {
		closeDB()
		if errors.Is(err, service.ErrNoDependencies) {
			logger.Info("topologymetrics: зависимости для мониторинга не настроены")
		} else {
			logger.Error("Ошибка создания topologymetrics", slog.String("error", err.Error()))
		}
		return nil, nil
	}
	if err := dh.Start(ctx); err != nil {
		closeDB()
		logger.Error("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		return nil, nil
	}

	return dh, func() {
		dh.Stop()
		closeDB()
	}
}
