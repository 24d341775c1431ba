// settings.go — сервис настроек с TTL-кэшем чтения.
//
// Настройки читаются на каждый запрос карточки файла и обновления статуса,
// поэтому значения кэшируются на TTL (по умолчанию 5 минут). Запись в хранилище
// кэш не инвалидирует: устаревание ограничено TTL. Кэш локален для процесса.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bigkaa/filetracker/internal/domain/model"
	"github.com/bigkaa/filetracker/internal/store"
)

const (
	settingsCacheSize    = 128
	settingsQueryTimeout = 2 * time.Second
	settingsWriteTimeout = 5 * time.Second
)

// cachedSetting — значение настройки и момент его устаревания.
type cachedSetting struct {
	value     any
	expiresAt time.Time
}

// SettingsService — чтение и запись настроек.
type SettingsService struct {
	repo   store.SettingsStore
	cache  *expirable.LRU[string, cachedSetting]
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewSettingsService создаёт сервис настроек с TTL кэша ttl.
func NewSettingsService(repo store.SettingsStore, ttl time.Duration, logger *slog.Logger) *SettingsService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SettingsService{
		repo:   repo,
		cache:  expirable.NewLRU[string, cachedSetting](settingsCacheSize, nil, ttl),
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With(slog.String("component", "settings_service")),
	}
}

// GetCachedSetting возвращает значение настройки из кэша или хранилища.
// Отсутствующая настройка кэшируется как def. Ошибка хранилища не кэшируется:
// вызывающий получает def.
func (s *SettingsService) GetCachedSetting(ctx context.Context, key string, def any) any {
	now := s.now()
	if entry, ok := s.cache.Get(key); ok && now.Before(entry.expiresAt) {
		settingsCacheHitsTotal.Inc()
		return entry.value
	}
	settingsCacheMissesTotal.Inc()

	qctx, cancel := context.WithTimeout(ctx, settingsQueryTimeout)
	defer cancel()

	value := def
	setting, err := s.repo.GetSetting(qctx, key)
	switch {
	case err == nil:
		value = setting.Value
	case errors.Is(err, store.ErrNotFound):
	default:
		s.logger.Error("Ошибка чтения настройки",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return def
	}

	s.cache.Add(key, cachedSetting{value: value, expiresAt: now.Add(s.ttl)})
	return value
}

// AllowQRStatusChange сообщает, разрешено ли менять статус через QR-код.
func (s *SettingsService) AllowQRStatusChange(ctx context.Context) bool {
	return model.AsBool(s.GetCachedSetting(ctx, model.SettingAllowQRStatusChange, true), true)
}

// List возвращает все настройки из хранилища (без кэша).
func (s *SettingsService) List(ctx context.Context) ([]model.Setting, error) {
	qctx, cancel := context.WithTimeout(ctx, settingsQueryTimeout)
	defer cancel()

	settings, err := s.repo.ListSettings(qctx)
	if err != nil {
		return nil, mapStoreError("получение настроек", err)
	}
	return settings, nil
}

// Update записывает значение настройки key. Строки "true"/"false" сохраняются как bool.
// Кэш не инвалидируется.
func (s *SettingsService) Update(ctx context.Context, key, raw string) error {
	if key == "" {
		return fmt.Errorf("%w: не указан ключ настройки", ErrValidation)
	}

	wctx, cancel := context.WithTimeout(ctx, settingsWriteTimeout)
	defer cancel()

	if err := s.repo.UpsertSetting(wctx, key, model.ParseSettingValue(raw)); err != nil {
		return mapStoreError(fmt.Sprintf("обновление настройки %s", key), err)
	}
	s.logger.Info("Настройка обновлена", slog.String("key", key), slog.String("value", raw))
	return nil
}

// InitDefaults создаёт настройки по умолчанию, которых ещё нет в хранилище.
func (s *SettingsService) InitDefaults(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, settingsWriteTimeout)
	defer cancel()

	for _, def := range model.DefaultSettings() {
		created, err := s.repo.InsertSettingIfAbsent(wctx, def)
		if err != nil {
			return mapStoreError(fmt.Sprintf("инициализация настройки %s", def.Key), err)
		}
		if created {
			s.logger.Info("Создана настройка по умолчанию", slog.String("key", def.Key))
		}
	}
	return nil
}

// mapStoreError приводит ошибку хранилища к ошибке сервисного слоя.
func mapStoreError(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
