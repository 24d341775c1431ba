// Пакет store — контракты хранилища File Tracker и нормализованные ошибки.
// Адаптеры (mongostore, pgstore, memstore) приводят ошибки конкретной СУБД
// к единому виду: ErrNotFound, ErrUnavailable и *UniqueConstraintViolation,
// так что бизнес-логика не зависит от кодов ошибок драйвера.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bigkaa/filetracker/internal/domain/model"
)

// Ошибки слоя хранилища.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrUnavailable — хранилище недоступно (сеть, таймаут, разомкнутый breaker).
	ErrUnavailable = errors.New("хранилище недоступно")
)

// Поля, на которых может сработать ограничение уникальности.
const (
	FieldFileID       = "fileId"
	FieldFileNumber   = "fileNumber"
	FieldSerialNumber = "serialNumber"
	FieldSettingKey   = "key"
	FieldUnknown      = "unknown"
)

// UniqueConstraintViolation — нарушение ограничения уникальности на поле Field.
type UniqueConstraintViolation struct {
	Field string
	Err   error
}

func (e *UniqueConstraintViolation) Error() string {
	return fmt.Sprintf("нарушение уникальности поля %s", e.Field)
}

func (e *UniqueConstraintViolation) Unwrap() error {
	return e.Err
}

// UniqueViolationField возвращает поле нарушения уникальности, если err — такое нарушение.
func UniqueViolationField(err error) (string, bool) {
	var uv *UniqueConstraintViolation
	if errors.As(err, &uv) {
		return uv.Field, true
	}
	return "", false
}

// Unavailable оборачивает ошибку драйвера в ErrUnavailable с сохранением цепочки.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// ListParams — параметры постраничной выборки.
type ListParams struct {
	// Query — свободный текст; пустая строка — без фильтра
	Query  string
	Limit  int
	Offset int
}

// FileStore — хранилище файлов.
type FileStore interface {
	// Insert сохраняет новый файл. Нарушения уникальности — *UniqueConstraintViolation.
	Insert(ctx context.Context, f *model.File) error
	// GetByFileID возвращает файл по непрозрачному идентификатору.
	GetByFileID(ctx context.Context, fileID string) (*model.File, error)
	// FindByFileNumber возвращает файл с указанным бизнес-номером.
	FindByFileNumber(ctx context.Context, fileNumber string) (*model.File, error)
	// Lookup ищет файл по fileId, fileNumber или serialNumber.
	Lookup(ctx context.Context, term string) (*model.File, error)
	// List возвращает проекции файлов, отсортированные по createdAt (новые первыми).
	List(ctx context.Context, params ListParams) ([]model.FileSummary, error)
	// Count возвращает количество файлов, подходящих под params.Query.
	Count(ctx context.Context, params ListParams) (int64, error)
	// LastSerialNumber возвращает лексикографически наибольший номер,
	// совпадающий с регулярным выражением pattern. ErrNotFound — номеров нет.
	LastSerialNumber(ctx context.Context, pattern string) (string, error)
	// AppendHistory атомарно применяет state к текущим полям файла
	// и добавляет entry в конец истории. Возвращает обновлённый файл.
	AppendHistory(ctx context.Context, fileID string, state model.State, entry model.HistoryEntry) (*model.File, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}

// SettingsStore — хранилище настроек key/value.
type SettingsStore interface {
	// GetSetting возвращает настройку по ключу или ErrNotFound.
	GetSetting(ctx context.Context, key string) (*model.Setting, error)
	// ListSettings возвращает все настройки, отсортированные по ключу.
	ListSettings(ctx context.Context) ([]model.Setting, error)
	// UpsertSetting создаёт или обновляет значение настройки.
	UpsertSetting(ctx context.Context, key string, value any) error
	// InsertSettingIfAbsent создаёт настройку, только если её ещё нет.
	// Возвращает true, если запись была создана.
	InsertSettingIfAbsent(ctx context.Context, s model.Setting) (bool, error)
}

// Maintenance — служебные операции, выполняемые при старте долгоживущего процесса.
type Maintenance interface {
	// EnsureIndexes создаёт индексы. uniqueFileNumber — создать уникальный индекс fileNumber.
	EnsureIndexes(ctx context.Context, uniqueFileNumber bool) error
	// HasUniqueFileNumberIndex сообщает, существует ли уникальный индекс fileNumber.
	HasUniqueFileNumberIndex(ctx context.Context) (bool, error)
	// RemoveDuplicateFileNumbers удаляет дубликаты fileNumber (оставляя самый старый)
	// не более чем в maxGroups группах. Возвращает число удалённых записей.
	RemoveDuplicateFileNumbers(ctx context.Context, maxGroups int) (int, error)
	// CleanupIncomplete удаляет записи без fileNumber или serialNumber.
	CleanupIncomplete(ctx context.Context) (int64, error)
}

// Store — полный набор возможностей адаптера.
type Store interface {
	FileStore
	SettingsStore
	Maintenance
	// Close освобождает соединения.
	Close(ctx context.Context) error
}
