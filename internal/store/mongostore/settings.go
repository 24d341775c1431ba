// settings.go — операции с коллекцией settings.
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bigkaa/filetracker/internal/domain/model"
)

// GetSetting возвращает настройку по ключу.
func (s *Store) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	var setting model.Setting
	if err := s.settings.FindOne(ctx, bson.D{{Key: "key", Value: key}}).Decode(&setting); err != nil {
		return nil, classify("получение настройки", err)
	}
	return &setting, nil
}

// ListSettings возвращает все настройки, отсортированные по ключу.
func (s *Store) ListSettings(ctx context.Context) ([]model.Setting, error) {
	cur, err := s.settings.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "key", Value: 1}}))
	if err != nil {
		return nil, classify("список настроек", err)
	}
	defer cur.Close(ctx)

	var result []model.Setting
	if err := cur.All(ctx, &result); err != nil {
		return nil, classify("чтение настроек", err)
	}
	return result, nil
}

// UpsertSetting создаёт или обновляет значение настройки.
func (s *Store) UpsertSetting(ctx context.Context, key string, value any) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "value", Value: value},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}}
	_, err := s.settings.UpdateOne(ctx, bson.D{{Key: "key", Value: key}}, update, options.Update().SetUpsert(true))
	if err != nil {
		return classify("обновление настройки", err)
	}
	return nil
}

// InsertSettingIfAbsent создаёт настройку через upsert с $setOnInsert:
// существующая запись не изменяется.
func (s *Store) InsertSettingIfAbsent(ctx context.Context, setting model.Setting) (bool, error) {
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now().UTC()
	}
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{
		{Key: "value", Value: setting.Value},
		{Key: "description", Value: setting.Description},
		{Key: "updatedAt", Value: setting.UpdatedAt},
	}}}
	res, err := s.settings.UpdateOne(ctx, bson.D{{Key: "key", Value: setting.Key}}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, classify("инициализация настройки", err)
	}
	return res.UpsertedCount == 1, nil
}
