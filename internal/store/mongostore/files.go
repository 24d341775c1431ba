// files.go — операции с коллекцией files.
package mongostore

import (
	"context"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bigkaa/filetracker/internal/domain/model"
	"github.com/bigkaa/filetracker/internal/store"
)

// summaryProjection — поля, нужные для списка файлов.
var summaryProjection = bson.D{
	{Key: "_id", Value: 0},
	{Key: "fileId", Value: 1},
	{Key: "fileName", Value: 1},
	{Key: "fileNumber", Value: 1},
	{Key: "serialNumber", Value: 1},
	{Key: "status", Value: 1},
	{Key: "section", Value: 1},
	{Key: "owner", Value: 1},
	{Key: "createdAt", Value: 1},
}

// searchFields — поля свободного поиска.
var searchFields = []string{"fileName", "fileNumber", "serialNumber", "owner", "section", "description"}

// Insert сохраняет новый файл.
func (s *Store) Insert(ctx context.Context, f *model.File) error {
	if _, err := s.files.InsertOne(ctx, f); err != nil {
		return classify("вставка файла", err)
	}
	return nil
}

// GetByFileID возвращает файл по fileId.
func (s *Store) GetByFileID(ctx context.Context, fileID string) (*model.File, error) {
	return s.findOne(ctx, bson.D{{Key: "fileId", Value: fileID}})
}

// FindByFileNumber возвращает файл по fileNumber.
func (s *Store) FindByFileNumber(ctx context.Context, fileNumber string) (*model.File, error) {
	return s.findOne(ctx, bson.D{{Key: "fileNumber", Value: fileNumber}})
}

// Lookup ищет файл по fileId, fileNumber или serialNumber.
func (s *Store) Lookup(ctx context.Context, term string) (*model.File, error) {
	return s.findOne(ctx, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "fileId", Value: term}},
		bson.D{{Key: "fileNumber", Value: term}},
		bson.D{{Key: "serialNumber", Value: term}},
	}}})
}

func (s *Store) findOne(ctx context.Context, filter bson.D) (*model.File, error) {
	var f model.File
	if err := s.files.FindOne(ctx, filter).Decode(&f); err != nil {
		return nil, classify("поиск файла", err)
	}
	return &f, nil
}

// List возвращает проекции файлов, новые первыми.
func (s *Store) List(ctx context.Context, params store.ListParams) ([]model.FileSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(summaryProjection)
	if params.Offset > 0 {
		opts.SetSkip(int64(params.Offset))
	}
	if params.Limit > 0 {
		opts.SetLimit(int64(params.Limit))
	}

	cur, err := s.files.Find(ctx, queryFilter(params.Query), opts)
	if err != nil {
		return nil, classify("список файлов", err)
	}
	defer cur.Close(ctx)

	result := make([]model.FileSummary, 0, max(params.Limit, 0))
	if err := cur.All(ctx, &result); err != nil {
		return nil, classify("чтение списка файлов", err)
	}
	return result, nil
}

// Count возвращает количество файлов, подходящих под запрос.
func (s *Store) Count(ctx context.Context, params store.ListParams) (int64, error) {
	n, err := s.files.CountDocuments(ctx, queryFilter(params.Query))
	if err != nil {
		return 0, classify("подсчёт файлов", err)
	}
	return n, nil
}

// queryFilter строит фильтр свободного поиска: регистронезависимое
// вхождение строки (спецсимволы экранируются) в любое из searchFields.
func queryFilter(query string) bson.D {
	query = strings.TrimSpace(query)
	if query == "" {
		return bson.D{}
	}
	pattern := regexp.QuoteMeta(query)
	or := make(bson.A, 0, len(searchFields))
	for _, field := range searchFields {
		or = append(or, bson.D{{Key: field, Value: bson.D{
			{Key: "$regex", Value: pattern},
			{Key: "$options", Value: "i"},
		}}})
	}
	return bson.D{{Key: "$or", Value: or}}
}

// LastSerialNumber возвращает наибольший serialNumber, совпадающий с pattern.
func (s *Store) LastSerialNumber(ctx context.Context, pattern string) (string, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "serialNumber", Value: -1}}).
		SetProjection(bson.D{{Key: "_id", Value: 0}, {Key: "serialNumber", Value: 1}})

	var doc struct {
		SerialNumber string `bson:"serialNumber"`
	}
	filter := bson.D{{Key: "serialNumber", Value: bson.D{{Key: "$regex", Value: pattern}}}}
	if err := s.files.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		return "", classify("последний серийный номер", err)
	}
	return doc.SerialNumber, nil
}

// AppendHistory одним findOneAndUpdate применяет состояние ($set)
// и добавляет запись в историю ($push).
func (s *Store) AppendHistory(ctx context.Context, fileID string, state model.State, entry model.HistoryEntry) (*model.File, error) {
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "status", Value: state.Status},
			{Key: "currentLocation", Value: state.CurrentLocation},
			{Key: "section", Value: state.Section},
			{Key: "owner", Value: state.Owner},
		}},
		{Key: "$push", Value: bson.D{{Key: "history", Value: entry}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var f model.File
	err := s.files.FindOneAndUpdate(ctx, bson.D{{Key: "fileId", Value: fileID}}, update, opts).Decode(&f)
	if err != nil {
		return nil, classify("обновление файла", err)
	}
	return &f, nil
}

// CleanupIncomplete удаляет файлы без fileNumber или serialNumber.
func (s *Store) CleanupIncomplete(ctx context.Context) (int64, error) {
	var or bson.A
	for _, field := range []string{"fileNumber", "serialNumber"} {
		or = append(or,
			bson.D{{Key: field, Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: field, Value: nil}},
			bson.D{{Key: field, Value: ""}},
		)
	}
	res, err := s.files.DeleteMany(ctx, bson.D{{Key: "$or", Value: or}})
	if err != nil {
		return 0, classify("очистка файлов", err)
	}
	return res.DeletedCount, nil
}

