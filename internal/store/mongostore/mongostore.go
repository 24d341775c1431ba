// Пакет mongostore — адаптер хранилища File Tracker для MongoDB.
// Коллекции: files (документы с вложенной историей) и settings (key/value).
// Ошибки драйвера приводятся к store.ErrNotFound, store.ErrUnavailable
// и *store.UniqueConstraintViolation.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/bigkaa/filetracker/internal/store"
)

// Имена коллекций.
const (
	filesCollection    = "files"
	settingsCollection = "settings"
)

// Имена индексов. Уникальные индексы сопоставляются с полями при разборе
// ошибки E11000.
const (
	indexFileID           = "uniq_file_id"
	indexSerialNumber     = "uniq_serial_number"
	indexUniqueFileNumber = "uniq_file_number"
	indexFileNumber       = "idx_file_number"
	indexSettingKey       = "uniq_setting_key"
)

var uniqueIndexFields = map[string]string{
	indexFileID:           store.FieldFileID,
	indexSerialNumber:     store.FieldSerialNumber,
	indexUniqueFileNumber: store.FieldFileNumber,
	indexSettingKey:       store.FieldSettingKey,
}

// Options — параметры подключения.
type Options struct {
	URI                    string
	Database               string
	MaxPoolSize            uint64
	ServerSelectionTimeout time.Duration
}

// Store — хранилище поверх MongoDB.
type Store struct {
	client   *mongo.Client
	files    *mongo.Collection
	settings *mongo.Collection
	logger   *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Connect подключается к MongoDB и проверяет доступность через ping.
func Connect(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if opts.Database == "" {
		opts.Database = "fileTracker"
	}
	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetAppName("file-tracker").
		SetRetryWrites(true)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.ServerSelectionTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(opts.ServerSelectionTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ошибка подключения к MongoDB: %w", err)
	}

	logger.Info("Подключение к MongoDB установлено", slog.String("database", opts.Database))
	return New(client, opts.Database, logger), nil
}

// New создаёт хранилище поверх готового клиента.
func New(client *mongo.Client, database string, logger *slog.Logger) *Store {
	db := client.Database(database)
	return &Store{
		client:   client,
		files:    db.Collection(filesCollection),
		settings: db.Collection(settingsCollection),
		logger:   logger.With(slog.String("component", "mongostore")),
	}
}

// Ping проверяет доступность primary.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return classify("ping", err)
	}
	return nil
}

// Close закрывает соединения клиента.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// classify приводит ошибку драйвера к ошибкам пакета store.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return &store.UniqueConstraintViolation{Field: duplicateField(err), Err: err}
	case isUnavailable(err):
		return store.Unavailable(op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isUnavailable(err error) bool {
	return mongo.IsTimeout(err) ||
		mongo.IsNetworkError(err) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		strings.Contains(err.Error(), "server selection error")
}

// duplicateField определяет поле нарушения уникальности: по keyPattern
// из ответа сервера, затем по имени индекса в тексте ошибки.
func duplicateField(err error) string {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if field, ok := keyPatternField(e.Raw); ok {
				return field
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		if field, ok := keyPatternField(ce.Raw); ok {
			return field
		}
	}

	msg := err.Error()
	for index, field := range uniqueIndexFields {
		if strings.Contains(msg, "index: "+index) {
			return field
		}
	}
	return store.FieldUnknown
}

func keyPatternField(raw bson.Raw) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	val, err := raw.LookupErr("keyPattern")
	if err != nil {
		return "", false
	}
	doc, ok := val.DocumentOK()
	if !ok {
		return "", false
	}
	elems, err := doc.Elements()
	if err != nil || len(elems) == 0 {
		return "", false
	}
	return elems[0].Key(), true
}
