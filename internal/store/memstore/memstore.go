// Пакет memstore — in-memory реализация store.Store.
// Используется в тестах и для локального запуска (FT_STORE_DRIVER=memory).
// Эмулирует уникальные индексы fileId и serialNumber, а уникальность fileNumber —
// только после EnsureIndexes(ctx, true), как и настоящие адаптеры.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/filetracker/internal/domain/model"
	"github.com/bigkaa/filetracker/internal/store"
)

// Store — потокобезопасное хранилище в памяти.
type Store struct {
	mu               sync.RWMutex
	files            []*model.File
	settings         map[string]model.Setting
	uniqueFileNumber bool
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{settings: make(map[string]model.Setting)}
}

var _ store.Store = (*Store)(nil)

// Insert сохраняет копию файла, проверяя уникальные поля.
func (s *Store) Insert(_ context.Context, f *model.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.files {
		switch {
		case existing.FileID == f.FileID:
			return &store.UniqueConstraintViolation{Field: store.FieldFileID}
		case existing.SerialNumber == f.SerialNumber:
			return &store.UniqueConstraintViolation{Field: store.FieldSerialNumber}
		case s.uniqueFileNumber && existing.FileNumber == f.FileNumber:
			return &store.UniqueConstraintViolation{Field: store.FieldFileNumber}
		}
	}
	s.files = append(s.files, cloneFile(f))
	return nil
}

// GetByFileID возвращает копию файла по fileId.
func (s *Store) GetByFileID(_ context.Context, fileID string) (*model.File, error) {
	return s.find(func(f *model.File) bool { return f.FileID == fileID })
}

// FindByFileNumber возвращает копию файла по fileNumber.
func (s *Store) FindByFileNumber(_ context.Context, fileNumber string) (*model.File, error) {
	return s.find(func(f *model.File) bool { return f.FileNumber == fileNumber })
}

// Lookup ищет по fileId, fileNumber или serialNumber.
func (s *Store) Lookup(_ context.Context, term string) (*model.File, error) {
	return s.find(func(f *model.File) bool {
		return f.FileID == term || f.FileNumber == term || f.SerialNumber == term
	})
}

func (s *Store) find(match func(*model.File) bool) (*model.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.files {
		if match(f) {
			return cloneFile(f), nil
		}
	}
	return nil, store.ErrNotFound
}

// List возвращает проекции, отсортированные по createdAt по убыванию.
func (s *Store) List(_ context.Context, params store.ListParams) ([]model.FileSummary, error) {
	matched := s.matching(params.Query)
	slices.SortStableFunc(matched, func(a, b *model.File) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	offset := min(max(params.Offset, 0), len(matched))
	end := len(matched)
	if params.Limit > 0 {
		end = min(offset+params.Limit, len(matched))
	}

	result := make([]model.FileSummary, 0, end-offset)
	for _, f := range matched[offset:end] {
		result = append(result, f.Summary())
	}
	return result, nil
}

// Count возвращает число файлов, подходящих под запрос.
func (s *Store) Count(_ context.Context, params store.ListParams) (int64, error) {
	return int64(len(s.matching(params.Query))), nil
}

func (s *Store) matching(query string) []*model.File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var result []*model.File
	for _, f := range s.files {
		if q == "" || matchesQuery(f, q) {
			result = append(result, cloneFile(f))
		}
	}
	return result
}

func matchesQuery(f *model.File, q string) bool {
	for _, v := range []string{f.FileName, f.FileNumber, f.SerialNumber, f.Owner, f.Section, f.Description} {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// LastSerialNumber возвращает наибольший номер, совпадающий с pattern.
func (s *Store) LastSerialNumber(_ context.Context, pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("некорректный шаблон %q: %w", pattern, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	last := ""
	for _, f := range s.files {
		if re.MatchString(f.SerialNumber) && cmp.Less(last, f.SerialNumber) {
			last = f.SerialNumber
		}
	}
	if last == "" {
		return "", store.ErrNotFound
	}
	return last, nil
}

// AppendHistory применяет состояние и добавляет запись истории под одной блокировкой.
func (s *Store) AppendHistory(_ context.Context, fileID string, state model.State, entry model.HistoryEntry) (*model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.files {
		if f.FileID != fileID {
			continue
		}
		f.Status = state.Status
		f.CurrentLocation = state.CurrentLocation
		f.Section = state.Section
		f.Owner = state.Owner
		f.History = append(f.History, entry)
		return cloneFile(f), nil
	}
	return nil, store.ErrNotFound
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error {
	return nil
}

// GetSetting возвращает настройку по ключу.
func (s *Store) GetSetting(_ context.Context, key string) (*model.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	setting, ok := s.settings[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &setting, nil
}

// ListSettings возвращает настройки, отсортированные по ключу.
func (s *Store) ListSettings(context.Context) ([]model.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]model.Setting, 0, len(s.settings))
	for _, setting := range s.settings {
		result = append(result, setting)
	}
	slices.SortFunc(result, func(a, b model.Setting) int { return cmp.Compare(a.Key, b.Key) })
	return result, nil
}

// UpsertSetting создаёт или обновляет значение настройки.
func (s *Store) UpsertSetting(_ context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	setting := s.settings[key]
	setting.Key = key
	setting.Value = value
	setting.UpdatedAt = time.Now().UTC()
	s.settings[key] = setting
	return nil
}

// InsertSettingIfAbsent создаёт настройку, если её нет.
func (s *Store) InsertSettingIfAbsent(_ context.Context, setting model.Setting) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settings[setting.Key]; ok {
		return false, nil
	}
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = time.Now().UTC()
	}
	s.settings[setting.Key] = setting
	return true, nil
}

// EnsureIndexes включает эмуляцию уникального индекса fileNumber.
func (s *Store) EnsureIndexes(_ context.Context, uniqueFileNumber bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uniqueFileNumber {
		s.uniqueFileNumber = true
	}
	return nil
}

// HasUniqueFileNumberIndex сообщает, включена ли уникальность fileNumber.
func (s *Store) HasUniqueFileNumberIndex(context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uniqueFileNumber, nil
}

// RemoveDuplicateFileNumbers оставляет в каждой группе дубликатов самый старый файл.
func (s *Store) RemoveDuplicateFileNumbers(_ context.Context, maxGroups int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[string][]*model.File)
	var order []string
	for _, f := range s.files {
		if _, seen := groups[f.FileNumber]; !seen {
			order = append(order, f.FileNumber)
		}
		groups[f.FileNumber] = append(groups[f.FileNumber], f)
	}

	remove := make(map[*model.File]bool)
	processed := 0
	for _, number := range order {
		group := groups[number]
		if len(group) < 2 {
			continue
		}
		if maxGroups > 0 && processed >= maxGroups {
			break
		}
		processed++
		slices.SortStableFunc(group, func(a, b *model.File) int { return a.CreatedAt.Compare(b.CreatedAt) })
		for _, dup := range group[1:] {
			remove[dup] = true
		}
	}

	kept := s.files[:0]
	for _, f := range s.files {
		if !remove[f] {
			kept = append(kept, f)
		}
	}
	s.files = kept
	return len(remove), nil
}

// CleanupIncomplete удаляет файлы без fileNumber или serialNumber.
func (s *Store) CleanupIncomplete(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	kept := s.files[:0]
	for _, f := range s.files {
		if f.FileNumber == "" || f.SerialNumber == "" {
			deleted++
			continue
		}
		kept = append(kept, f)
	}
	s.files = kept
	return deleted, nil
}

// Close ничего не делает.
func (s *Store) Close(context.Context) error {
	return nil
}

func cloneFile(f *model.File) *model.File {
	c := *f
	c.History = slices.Clone(f.History)
	return &c
}
