// files.go — File Lifecycle Tracker: создание файлов, история перемещений, поиск.
//
// Инвариант: текущие status/currentLocation файла всегда совпадают с полями
// последней записи истории. Обновление состояния и добавление записи выполняются
// одной операцией хранилища (AppendHistory).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/filetracker/internal/domain/model"
	"github.com/bigkaa/filetracker/internal/domain/serial"
	"github.com/bigkaa/filetracker/internal/events"
	"github.com/bigkaa/filetracker/internal/store"
)

// Бюджеты времени отдельных запросов к хранилищу.
const (
	lookupTimeout = 3 * time.Second
	writeTimeout  = 5 * time.Second
	listTimeout   = 5 * time.Second
	countTimeout  = 3 * time.Second
)

// Параметры пагинации списка файлов.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// CreateInput — поля формы создания файла.
type CreateInput struct {
	FileNumber  string
	FileName    string
	Description string
	Section     string
	Owner       string
	Status      model.Status
	// BaseURL — внешний адрес сервиса для QR-ссылки
	BaseURL string
}

// CreateResult — созданный файл и его QR-ссылка.
type CreateResult struct {
	File  *model.File
	QRURL string
	// QRCode — PNG в виде data URL; пусто, если кодирование не удалось
	QRCode string
}

// UpdateInput — изменения, переданные со страницы файла (обычно по QR-ссылке).
// Пустые Status и Location оставляют текущие значения.
type UpdateInput struct {
	Status           model.Status
	Location         string
	Handler          string
	Notes            string
	FromSection      string
	ToSection        string
	FromLocation     string
	FromOfficialName string
}

// ListResult — страница списка файлов с метаданными пагинации.
type ListResult struct {
	Files       []model.FileSummary `json:"files"`
	CurrentPage int                 `json:"currentPage"`
	Limit       int                 `json:"limit"`
	TotalPages  int                 `json:"totalPages"`
	TotalCount  int64               `json:"totalCount"`
	HasNextPage bool                `json:"hasNextPage"`
	HasPrevPage bool                `json:"hasPrevPage"`
}

// FileService — жизненный цикл файлов.
type FileService struct {
	repo      store.FileStore
	settings  *SettingsService
	guard     *SubmissionGuard
	allocator *SerialAllocator
	qr        *QRRenderer
	publisher events.Publisher
	policy    serial.RetryPolicy
	now       func() time.Time
	newID     func() (string, error)
	logger    *slog.Logger
}

// NewFileService создаёт сервис жизненного цикла файлов.
func NewFileService(
	repo store.FileStore,
	settings *SettingsService,
	guard *SubmissionGuard,
	allocator *SerialAllocator,
	qr *QRRenderer,
	publisher events.Publisher,
	policy serial.RetryPolicy,
	logger *slog.Logger,
) *FileService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &FileService{
		repo:      repo,
		settings:  settings,
		guard:     guard,
		allocator: allocator,
		qr:        qr,
		publisher: publisher,
		policy:    policy.Normalize(),
		now:       time.Now,
		newID:     newFileID,
		logger:    logger.With(slog.String("component", "file_service")),
	}
}

// newFileID генерирует fileId (UUIDv7, упорядочен по времени).
func newFileID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("генерация fileId: %w", err)
	}
	return id.String(), nil
}

// Create создаёт файл с первой записью истории «File created».
//
// Порядок проверок: обязательные поля, защита от повторной отправки,
// проверка fileNumber, выделение серийного номера с повторами при конфликте.
func (s *FileService) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	in = normalizeCreateInput(in)
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}

	key := SubmissionKey(in.FileNumber, in.FileName, in.Owner)
	if !s.guard.TryAcquire(key) {
		duplicateSubmissionsTotal.Inc()
		s.logger.Info("Повторная отправка отклонена", slog.String("file_number", in.FileNumber))
		return nil, ErrTooManyRequests
	}

	f, err := s.create(ctx, in)
	if err != nil {
		s.guard.Release(key)
		return nil, err
	}

	filesCreatedTotal.Inc()
	s.logger.Info("Файл создан",
		slog.String("file_id", f.FileID),
		slog.String("file_number", f.FileNumber),
		slog.String("serial_number", f.SerialNumber),
	)
	s.publish(ctx, events.TypeFileCreated, f)

	result := &CreateResult{File: f, QRURL: FileURL(in.BaseURL, f.FileID)}
	qr, err := s.qr.DataURL(ctx, result.QRURL)
	if err != nil {
		s.logger.Error("QR-код не сгенерирован, файл сохранён",
			slog.String("file_id", f.FileID),
			slog.String("error", err.Error()),
		)
	}
	result.QRCode = qr
	return result, nil
}

func (s *FileService) create(ctx context.Context, in CreateInput) (*model.File, error) {
	lctx, cancel := context.WithTimeout(ctx, writeTimeout)
	_, err := s.repo.FindByFileNumber(lctx, in.FileNumber)
	cancel()
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrDuplicateFileNumber, in.FileNumber)
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, mapStoreError("проверка номера файла", err)
	}

	fileID, err := s.newID()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	year := now.Year()

	for attempt := range s.policy.MaxAttempts {
		if attempt > 0 {
			serialRetriesTotal.Inc()
			if err := sleepCtx(ctx, s.policy.Delay(attempt)); err != nil {
				return nil, err
			}
		}

		sn, _, err := s.allocator.Allocate(ctx, year, attempt)
		if err != nil {
			serialConflictsTotal.Inc()
			return nil, fmt.Errorf("%w: %w", ErrSerialNumberConflict, err)
		}

		f := newFile(fileID, sn, in, now)
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = s.repo.Insert(wctx, f)
		cancel()
		if err == nil {
			return f, nil
		}

		field, ok := store.UniqueViolationField(err)
		if !ok {
			return nil, mapStoreError("сохранение файла", err)
		}
		switch field {
		case store.FieldSerialNumber:
			s.logger.Warn("Конфликт серийного номера, повтор",
				slog.String("serial_number", sn),
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", s.policy.MaxAttempts),
			)
		case store.FieldFileID:
			if fileID, err = s.newID(); err != nil {
				return nil, err
			}
		case store.FieldFileNumber:
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFileNumber, in.FileNumber)
		default:
			return nil, fmt.Errorf("%w: файл с такими данными уже существует", ErrValidation)
		}
	}

	serialConflictsTotal.Inc()
	return nil, fmt.Errorf("%w: %d попыток", ErrSerialNumberConflict, s.policy.MaxAttempts)
}

// newFile собирает файл и первую запись истории. Местоположение при создании — отдел.
func newFile(fileID, sn string, in CreateInput, now time.Time) *model.File {
	return &model.File{
		FileID:          fileID,
		FileNumber:      in.FileNumber,
		SerialNumber:    sn,
		FileName:        in.FileName,
		Description:     in.Description,
		Section:         in.Section,
		Owner:           in.Owner,
		CurrentLocation: in.Section,
		Status:          in.Status,
		CreatedAt:       now,
		History: []model.HistoryEntry{{
			Location:  in.Section,
			Status:    in.Status,
			Handler:   in.Owner,
			Section:   in.Section,
			ToSection: in.Section,
			Notes:     model.CreatedNote,
			Timestamp: now,
		}},
	}
}

func normalizeCreateInput(in CreateInput) CreateInput {
	in.FileNumber = strings.TrimSpace(in.FileNumber)
	in.FileName = strings.TrimSpace(in.FileName)
	in.Description = strings.TrimSpace(in.Description)
	in.Section = strings.TrimSpace(in.Section)
	in.Owner = strings.TrimSpace(in.Owner)
	in.Status = model.Status(strings.TrimSpace(string(in.Status)))
	if in.Status == "" {
		in.Status = model.StatusActive
	}
	return in
}

func validateCreateInput(in CreateInput) error {
	var missing []string
	if in.FileNumber == "" {
		missing = append(missing, "fileNumber")
	}
	if in.FileName == "" {
		missing = append(missing, "fileName")
	}
	if in.Section == "" {
		missing = append(missing, "section")
	}
	if in.Owner == "" {
		missing = append(missing, "owner")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: отсутствуют обязательные поля: %s", ErrValidation, strings.Join(missing, ", "))
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: недопустимый статус %q", ErrValidation, in.Status)
	}
	return nil
}

// Get возвращает файл по fileId.
func (s *FileService) Get(ctx context.Context, fileID string) (*model.File, error) {
	qctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	f, err := s.repo.GetByFileID(qctx, fileID)
	if err != nil {
		return nil, mapStoreError("получение файла", err)
	}
	return f, nil
}

// Lookup ищет файл по fileId, fileNumber или serialNumber.
func (s *FileService) Lookup(ctx context.Context, term string) (*model.File, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: пустой поисковый запрос", ErrValidation)
	}

	qctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	f, err := s.repo.Lookup(qctx, term)
	if err != nil {
		return nil, mapStoreError("поиск файла", err)
	}
	return f, nil
}

// List возвращает страницу файлов (новые первыми). query — свободный текст.
func (s *FileService) List(ctx context.Context, page, limit int, query string) (*ListResult, error) {
	page = max(page, 1)
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	limit = min(limit, MaxPageLimit)

	params := store.ListParams{
		Query:  strings.TrimSpace(query),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	lctx, cancel := context.WithTimeout(ctx, listTimeout)
	files, err := s.repo.List(lctx, params)
	cancel()
	if err != nil {
		return nil, mapStoreError("получение списка файлов", err)
	}

	cctx, cancel := context.WithTimeout(ctx, countTimeout)
	total, err := s.repo.Count(cctx, params)
	cancel()
	if err != nil {
		return nil, mapStoreError("подсчёт файлов", err)
	}

	if files == nil {
		files = []model.FileSummary{}
	}
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &ListResult{
		Files:       files,
		CurrentPage: page,
		Limit:       limit,
		TotalPages:  totalPages,
		TotalCount:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}, nil
}

// UpdateStatus применяет изменения к файлу и добавляет запись истории.
// Запись добавляется при каждом вызове, даже если значения не изменились.
func (s *FileService) UpdateStatus(ctx context.Context, fileID string, in UpdateInput) (*model.File, error) {
	if !s.settings.AllowQRStatusChange(ctx) {
		return nil, ErrForbidden
	}

	in.Status = model.Status(strings.TrimSpace(string(in.Status)))
	if in.Status != "" && !in.Status.Valid() {
		return nil, fmt.Errorf("%w: недопустимый статус %q", ErrValidation, in.Status)
	}

	current, err := s.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	state := nextState(current, in)
	entry := model.HistoryEntry{
		Location:         state.CurrentLocation,
		Status:           state.Status,
		Handler:          strings.TrimSpace(in.Handler),
		Section:          state.Section,
		Notes:            strings.TrimSpace(in.Notes),
		FromSection:      strings.TrimSpace(in.FromSection),
		ToSection:        strings.TrimSpace(in.ToSection),
		FromLocation:     strings.TrimSpace(in.FromLocation),
		FromOfficialName: strings.TrimSpace(in.FromOfficialName),
		Timestamp:        s.now().UTC(),
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	updated, err := s.repo.AppendHistory(wctx, fileID, state, entry)
	if err != nil {
		return nil, mapStoreError("обновление файла", err)
	}

	historyEntriesTotal.Inc()
	s.logger.Info("Статус файла обновлён",
		slog.String("file_id", fileID),
		slog.String("status", string(updated.Status)),
		slog.String("location", updated.CurrentLocation),
	)
	s.publish(ctx, events.TypeFileUpdated, updated)
	return updated, nil
}

// nextState вычисляет новое текущее состояние файла.
// Отдел меняется на toSection, владелец — на handler, если они переданы.
func nextState(f *model.File, in UpdateInput) model.State {
	state := model.State{
		Status:          f.Status,
		CurrentLocation: f.CurrentLocation,
		Section:         f.Section,
		Owner:           f.Owner,
	}
	if in.Status != "" {
		state.Status = in.Status
	}
	if loc := strings.TrimSpace(in.Location); loc != "" {
		state.CurrentLocation = loc
	}
	if to := strings.TrimSpace(in.ToSection); to != "" {
		state.Section = to
	}
	if h := strings.TrimSpace(in.Handler); h != "" {
		state.Owner = h
	}
	return state
}

func (s *FileService) publish(ctx context.Context, eventType string, f *model.File) {
	if err := s.publisher.Publish(ctx, events.NewEvent(eventType, f)); err != nil {
		s.logger.Warn("Событие не опубликовано",
			slog.String("type", eventType),
			slog.String("file_id", f.FileID),
			slog.String("error", err.Error()),
		)
	}
}
