// maintenance.go — индексы и дедупликация коллекции files.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// baseIndexes — индексы, создаваемые всегда (кроме serverless-режима).
func baseIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "fileId", Value: 1}}, Options: options.Index().SetName(indexFileID).SetUnique(true)},
		{Keys: bson.D{{Key: "serialNumber", Value: 1}}, Options: options.Index().SetName(indexSerialNumber).SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index().SetName("idx_status")},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("idx_created_at")},
		{Keys: bson.D{{Key: "section", Value: 1}}, Options: options.Index().SetName("idx_section")},
		{Keys: bson.D{{Key: "owner", Value: 1}}, Options: options.Index().SetName("idx_owner")},
	}
}

// EnsureIndexes создаёт индексы коллекций. Индекс fileNumber один:
// обычный (idx_file_number) или уникальный (uniq_file_number), т.к. MongoDB
// не допускает двух индексов с одинаковым ключом.
func (s *Store) EnsureIndexes(ctx context.Context, uniqueFileNumber bool) error {
	if _, err := s.files.Indexes().CreateMany(ctx, baseIndexes()); err != nil {
		return classify("создание индексов files", err)
	}
	_, err := s.settings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "key", Value: 1}},
		Options: options.Index().SetName(indexSettingKey).SetUnique(true),
	})
	if err != nil {
		return classify("создание индекса settings", err)
	}

	hasUnique, err := s.HasUniqueFileNumberIndex(ctx)
	if err != nil {
		return err
	}
	if hasUnique {
		return nil
	}

	if !uniqueFileNumber {
		return s.createFileNumberIndex(ctx)
	}

	if err := s.dropIndexIfExists(ctx, indexFileNumber); err != nil {
		return err
	}
	_, err = s.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "fileNumber", Value: 1}},
		Options: options.Index().SetName(indexUniqueFileNumber).SetUnique(true),
	})
	if err != nil {
		// Оставшиеся дубликаты не дают создать уникальный индекс:
		// возвращаем обычный, чтобы поиск по fileNumber не остался без индекса.
		if restoreErr := s.createFileNumberIndex(ctx); restoreErr != nil {
			s.logger.Error("Не удалось восстановить индекс fileNumber",
				slog.String("error", restoreErr.Error()),
			)
		}
		return classify("создание уникального индекса fileNumber", err)
	}
	return nil
}

// createFileNumberIndex создаёт обычный индекс fileNumber.
func (s *Store) createFileNumberIndex(ctx context.Context) error {
	_, err := s.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "fileNumber", Value: 1}},
		Options: options.Index().SetName(indexFileNumber),
	})
	return classify("создание индекса fileNumber", err)
}

// indexSpec — описание индекса из listIndexes.
type indexSpec struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique bool   `bson:"unique"`
}

func (s *Store) listIndexes(ctx context.Context) ([]indexSpec, error) {
	cur, err := s.files.Indexes().List(ctx)
	if err != nil {
		return nil, classify("список индексов", err)
	}
	defer cur.Close(ctx)

	var specs []indexSpec
	if err := cur.All(ctx, &specs); err != nil {
		return nil, classify("чтение индексов", err)
	}
	return specs, nil
}

// HasUniqueFileNumberIndex проверяет наличие уникального индекса по fileNumber.
func (s *Store) HasUniqueFileNumberIndex(ctx context.Context) (bool, error) {
	specs, err := s.listIndexes(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(specs, func(ix indexSpec) bool {
		return ix.Unique && len(ix.Key) == 1 && ix.Key[0].Key == "fileNumber"
	}), nil
}

func (s *Store) dropIndexIfExists(ctx context.Context, name string) error {
	specs, err := s.listIndexes(ctx)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(specs, func(ix indexSpec) bool { return ix.Name == name }) {
		return nil
	}
	if _, err := s.files.Indexes().DropOne(ctx, name); err != nil {
		return classify(fmt.Sprintf("удаление индекса %s", name), err)
	}
	return nil
}

// duplicateGroup — группа документов с одинаковым fileNumber.
type duplicateGroup struct {
	FileNumber string         `bson:"_id"`
	Docs       []duplicateDoc `bson:"docs"`
}

type duplicateDoc struct {
	ID        primitive.ObjectID `bson:"id"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// RemoveDuplicateFileNumbers оставляет в каждой группе дубликатов самый
// старый документ. За вызов обрабатывается не более maxGroups групп.
func (s *Store) RemoveDuplicateFileNumbers(ctx context.Context, maxGroups int) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$fileNumber"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "docs", Value: bson.D{{Key: "$push", Value: bson.D{
				{Key: "id", Value: "$_id"},
				{Key: "createdAt", Value: "$createdAt"},
			}}}},
		}}},
		{{Key: "$match", Value: bson.D{{Key: "count", Value: bson.D{{Key: "$gt", Value: 1}}}}}},
	}
	if maxGroups > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: maxGroups}})
	}

	cur, err := s.files.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, classify("поиск дубликатов fileNumber", err)
	}
	defer cur.Close(ctx)

	var groups []duplicateGroup
	if err := cur.All(ctx, &groups); err != nil {
		return 0, classify("чтение дубликатов fileNumber", err)
	}

	removed := 0
	for _, g := range groups {
		slices.SortStableFunc(g.Docs, func(a, b duplicateDoc) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
		ids := make(bson.A, 0, len(g.Docs)-1)
		for _, d := range g.Docs[1:] {
			ids = append(ids, d.ID)
		}
		res, err := s.files.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
		if err != nil {
			return removed, classify("удаление дубликатов fileNumber", err)
		}
		removed += int(res.DeletedCount)
		s.logger.Info("Удалены дубликаты fileNumber",
			slog.String("file_number", g.FileNumber),
			slog.Int64("deleted", res.DeletedCount),
		)
	}
	return removed, nil
}
