// settings.go — операции с таблицей settings. Значения хранятся в JSONB.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bigkaa/filetracker/internal/domain/model"
)

// GetSetting возвращает настройку по ключу.
func (s *Store) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	var (
		setting model.Setting
		raw     []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT key, value, description, updated_at FROM settings WHERE key = $1`, key,
	).Scan(&setting.Key, &raw, &setting.Description, &setting.UpdatedAt)
	if err != nil {
		return nil, classify("get setting", err)
	}
	if err := json.Unmarshal(raw, &setting.Value); err != nil {
		return nil, fmt.Errorf("разбор значения настройки %s: %w", key, err)
	}
	setting.UpdatedAt = setting.UpdatedAt.UTC()
	return &setting, nil
}

// ListSettings возвращает все настройки, отсортированные по ключу.
func (s *Store) ListSettings(ctx context.Context) ([]model.Setting, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key, value, description, updated_at FROM settings ORDER BY key COLLATE "C"`)
	if err != nil {
		return nil, classify("list settings", err)
	}
	defer rows.Close()

	var result []model.Setting
	for rows.Next() {
		var (
			setting model.Setting
			raw     []byte
		)
		if err := rows.Scan(&setting.Key, &raw, &setting.Description, &setting.UpdatedAt); err != nil {
			return nil, classify("scan setting", err)
		}
		if err := json.Unmarshal(raw, &setting.Value); err != nil {
			return nil, fmt.Errorf("разбор значения настройки %s: %w", setting.Key, err)
		}
		setting.UpdatedAt = setting.UpdatedAt.UTC()
		result = append(result, setting)
	}
	return result, classify("list settings", rows.Err())
}

// UpsertSetting создаёт или обновляет значение; описание существующей настройки сохраняется.
func (s *Store) UpsertSetting(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("сериализация значения настройки %s: %w", key, err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, raw, time.Now().UTC(),
	)
	return classify("upsert setting", err)
}

// InsertSettingIfAbsent создаёт настройку, если ключа ещё нет.
func (s *Store) InsertSettingIfAbsent(ctx context.Context, setting model.Setting) (bool, error) {
	raw, err := json.Marshal(setting.Value)
	if err != nil {
		return false, fmt.Errorf("сериализация значения настройки %s: %w", setting.Key, err)
	}
	updatedAt := setting.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO settings (key, value, description, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING`,
		setting.Key, raw, setting.Description, updatedAt,
	)
	if err != nil {
		return false, classify("insert setting", err)
	}
	return tag.RowsAffected() == 1, nil
}
