// maintenance.go — служебные операции при старте долгоживущего процесса
// и ручная очистка записей без обязательных полей.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bigkaa/filetracker/internal/store"
)

const (
	// duplicateGroupsPerRun — сколько групп дубликатов fileNumber обрабатывается за запуск
	duplicateGroupsPerRun = 10
	maintenanceTimeout    = 30 * time.Second
)

// MaintenanceService — индексы, дедупликация и очистка.
type MaintenanceService struct {
	repo     store.Maintenance
	settings *SettingsService
	logger   *slog.Logger
}

// NewMaintenanceService создаёт сервис обслуживания хранилища.
func NewMaintenanceService(repo store.Maintenance, settings *SettingsService, logger *slog.Logger) *MaintenanceService {
	return &MaintenanceService{
		repo:     repo,
		settings: settings,
		logger:   logger.With(slog.String("component", "maintenance_service")),
	}
}

// StartupOptions — что выполнять при старте.
type StartupOptions struct {
	// Serverless — пропустить управление индексами (короткоживущий процесс)
	Serverless bool
	// Cleanup — удалить записи без fileNumber/serialNumber
	Cleanup bool
}

// Startup инициализирует настройки по умолчанию и, вне serverless-режима,
// создаёт индексы. Ошибки логируются и не останавливают запуск: без
// уникального индекса fileNumber уникальность проверяется только в коде.
func (m *MaintenanceService) Startup(ctx context.Context, opts StartupOptions) {
	ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
	defer cancel()

	if err := m.settings.InitDefaults(ctx); err != nil {
		m.logger.Error("Ошибка инициализации настроек", slog.String("error", err.Error()))
	}

	if opts.Serverless {
		m.logger.Info("Serverless-режим: создание индексов пропущено")
		return
	}

	if err := m.repo.EnsureIndexes(ctx, false); err != nil {
		m.logger.Warn("Не удалось создать индексы", slog.String("error", err.Error()))
	}
	m.ensureUniqueFileNumber(ctx)

	if opts.Cleanup {
		if _, err := m.Cleanup(ctx); err != nil {
			m.logger.Error("Ошибка очистки при старте", slog.String("error", err.Error()))
		}
	}
}

func (m *MaintenanceService) ensureUniqueFileNumber(ctx context.Context) {
	exists, err := m.repo.HasUniqueFileNumberIndex(ctx)
	if err != nil {
		m.logger.Warn("Не удалось проверить индекс fileNumber", slog.String("error", err.Error()))
		return
	}
	if exists {
		return
	}

	removed, err := m.repo.RemoveDuplicateFileNumbers(ctx, duplicateGroupsPerRun)
	if err != nil {
		m.logger.Warn("Ошибка удаления дубликатов fileNumber", slog.String("error", err.Error()))
	} else if removed > 0 {
		m.logger.Info("Удалены дубликаты fileNumber", slog.Int("removed", removed))
	}

	if err := m.repo.EnsureIndexes(ctx, true); err != nil {
		m.logger.Warn("Уникальный индекс fileNumber не создан, проверка только в коде",
			slog.String("error", err.Error()),
		)
		return
	}
	m.logger.Info("Создан уникальный индекс fileNumber")
}

// Cleanup удаляет записи без fileNumber или serialNumber.
func (m *MaintenanceService) Cleanup(ctx context.Context) (int64, error) {
	deleted, err := m.repo.CleanupIncomplete(ctx)
	if err != nil {
		return 0, mapStoreError("очистка записей", err)
	}
	if deleted > 0 {
		m.logger.Info("Удалены записи без обязательных полей", slog.Int64("deleted", deleted))
	}
	return deleted, nil
}
