package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/filetracker/internal/domain/model"
	"github.com/bigkaa/filetracker/internal/events"
	"github.com/bigkaa/filetracker/internal/store"
	"github.com/bigkaa/filetracker/internal/store/memstore"
)

func TestCreate_SeedHistory(t *testing.T) {
	env := newTestEnv(t, nil)

	res, err := env.files.Create(context.Background(), validInput("A-1"))
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	f := res.File
	if len(f.History) != 1 {
		t.Fatalf("len(History) = %d, ожидалась 1", len(f.History))
	}
	entry := f.History[0]
	if entry.Notes != model.CreatedNote {
		t.Errorf("Notes = %q, ожидалось %q", entry.Notes, model.CreatedNote)
	}
	if entry.Status != f.Status || f.Status != model.StatusActive {
		t.Errorf("статус записи %q, файла %q", entry.Status, f.Status)
	}
	if f.CurrentLocation != "Бухгалтерия" || entry.Location != f.CurrentLocation {
		t.Errorf("местоположение при создании должно совпадать с отделом: %q / %q", f.CurrentLocation, entry.Location)
	}
	if entry.Handler != "ivanov" {
		t.Errorf("Handler = %q, ожидался владелец", entry.Handler)
	}
	if res.QRURL != "https://files.example.com/file/"+f.FileID {
		t.Errorf("QRURL = %q", res.QRURL)
	}
	if !strings.HasPrefix(res.QRCode, "data:image/png;base64,") {
		t.Errorf("QRCode должен быть PNG data URL, получено %.30q", res.QRCode)
	}
	if got := env.publisher.types(); len(got) != 1 || got[0] != events.TypeFileCreated {
		t.Errorf("события = %v, ожидалось [file.created]", got)
	}
}

func TestCreate_SequentialSerialNumbers(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i, want := range []string{"SN2025000001", "SN2025000002", "SN2025000003"} {
		res, err := env.files.Create(ctx, validInput("N-"+want))
		if err != nil {
			t.Fatalf("Create #%d ошибка: %v", i+1, err)
		}
		if res.File.SerialNumber != want {
			t.Errorf("SerialNumber #%d = %q, ожидалось %q", i+1, res.File.SerialNumber, want)
		}
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
	}{
		{name: "нет номера", in: CreateInput{FileName: "x", Section: "s", Owner: "o"}},
		{name: "нет названия", in: CreateInput{FileNumber: "1", Section: "s", Owner: "o"}},
		{name: "нет отдела", in: CreateInput{FileNumber: "1", FileName: "x", Owner: "o"}},
		{name: "нет владельца", in: CreateInput{FileNumber: "1", FileName: "x", Section: "s"}},
		{name: "только пробелы", in: CreateInput{FileNumber: "  ", FileName: "x", Section: "s", Owner: "o"}},
		{name: "неизвестный статус", in: CreateInput{FileNumber: "1", FileName: "x", Section: "s", Owner: "o", Status: "Lost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memstore.New()
			env := newTestEnv(t, repo)
			_, err := env.files.Create(context.Background(), tt.in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("ожидалась ErrValidation, получено %v", err)
			}
			if n, _ := repo.Count(context.Background(), store.ListParams{}); n != 0 {
				t.Errorf("при ошибке валидации записано %d файлов", n)
			}
			if env.guard.Len() != 0 {
				t.Error("ошибка валидации не должна попадать в журнал отправок")
			}
		})
	}
}

func TestCreate_DuplicateSubmission(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	if _, err := env.files.Create(ctx, validInput("D-1")); err != nil {
		t.Fatalf("первое создание: %v", err)
	}
	if _, err := env.files.Create(ctx, validInput("D-1")); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("повтор в окне: ожидалась ErrTooManyRequests, получено %v", err)
	}

	env.clock.Advance(6 * time.Second)
	in := validInput("D-2")
	in.FileName = "Договор D-1"
	if _, err := env.files.Create(ctx, in); err != nil {
		t.Fatalf("создание после окна: %v", err)
	}
}

func TestCreate_DuplicateFileNumber(t *testing.T) {
	repo := memstore.New()
	env := newTestEnv(t, repo)
	ctx := context.Background()

	if _, err := env.files.Create(ctx, validInput("X-1")); err != nil {
		t.Fatalf("первое создание: %v", err)
	}

	in := validInput("X-1")
	in.FileName = "Другое название"
	if _, err := env.files.Create(ctx, in); !errors.Is(err, ErrDuplicateFileNumber) {
		t.Fatalf("ожидалась ErrDuplicateFileNumber, получено %v", err)
	}
	if n, _ := repo.Count(ctx, store.ListParams{}); n != 1 {
		t.Errorf("файлов в хранилище %d, ожидался 1", n)
	}
}

func TestCreate_DuplicateFileNumberFromIndex(t *testing.T) {
	repo := memstore.New()
	_ = repo.EnsureIndexes(context.Background(), true)
	// Гонка: проверка прошла, но уникальный индекс отклонил вставку
	racing := &racingStore{Store: repo}
	env := newTestEnv(t, racing)

	_, err := env.files.Create(context.Background(), validInput("R-1"))
	if !errors.Is(err, ErrDuplicateFileNumber) {
		t.Fatalf("ожидалась ErrDuplicateFileNumber, получено %v", err)
	}
}

// racingStore всегда сообщает, что fileNumber свободен, и отвечает нарушением индекса.
type racingStore struct {
	*memstore.Store
}

func (s *racingStore) FindByFileNumber(context.Context, string) (*model.File, error) {
	return nil, store.ErrNotFound
}

func (s *racingStore) Insert(context.Context, *model.File) error {
	return &store.UniqueConstraintViolation{Field: store.FieldFileNumber}
}

func TestCreate_SerialRetry(t *testing.T) {
	repo := &conflictStore{Store: memstore.New(), failures: 1}
	env := newTestEnv(t, repo)

	res, err := env.files.Create(context.Background(), validInput("S-1"))
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if res.File.SerialNumber != "SN2025000002" {
		t.Errorf("после конфликта ожидался SN2025000002, получено %q", res.File.SerialNumber)
	}
	if repo.inserts != 2 {
		t.Errorf("попыток вставки %d, ожидалось 2", repo.inserts)
	}
}

func TestCreate_SerialConflictExhausted(t *testing.T) {
	repo := &conflictStore{Store: memstore.New(), failures: -1}
	env := newTestEnv(t, repo)
	ctx := context.Background()

	_, err := env.files.Create(ctx, validInput("C-1"))
	if !errors.Is(err, ErrSerialNumberConflict) {
		t.Fatalf("ожидалась ErrSerialNumberConflict, получено %v", err)
	}
	if repo.inserts != 3 {
		t.Errorf("попыток вставки %d, ожидалось 3", repo.inserts)
	}
	if n, _ := repo.Count(ctx, store.ListParams{}); n != 0 {
		t.Errorf("после конфликта осталось %d записей", n)
	}
	// Неудачное создание не блокирует повторную отправку
	repo.failures = 0
	if _, err := env.files.Create(ctx, validInput("C-1")); err != nil {
		t.Errorf("повтор после конфликта: %v", err)
	}
}

func TestCreate_FallbackSerialWhenStoreUnavailable(t *testing.T) {
	repo := &unavailableSerialStore{Store: memstore.New()}
	env := newTestEnv(t, repo)

	res, err := env.files.Create(context.Background(), validInput("F-1"))
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	sn := res.File.SerialNumber
	if !strings.HasPrefix(sn, "SN2025") || len(sn) != len("SN2025")+8 {
		t.Errorf("ожидался резервный номер SN2025 + 8 цифр, получено %q", sn)
	}
	if !strings.HasSuffix(sn, "07") {
		t.Errorf("резервный номер должен заканчиваться случайным суффиксом 07: %q", sn)
	}
}

func TestUpdateStatus_InvariantHolds(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, _ := env.files.Create(ctx, validInput("U-1"))
	id := res.File.FileID

	updates := []UpdateInput{
		{Status: model.StatusInReview, Location: "Кабинет 12", Handler: "petrov", Notes: "на проверку"},
		{Status: model.StatusArchived, ToSection: "Архив", FromSection: "Бухгалтерия", FromLocation: "Кабинет 12"},
		{Location: "Стеллаж 3"},
		{},
	}
	for i, in := range updates {
		env.clock.Advance(time.Minute)
		f, err := env.files.UpdateStatus(ctx, id, in)
		if err != nil {
			t.Fatalf("UpdateStatus #%d ошибка: %v", i+1, err)
		}
		last := f.History[len(f.History)-1]
		if f.Status != last.Status {
			t.Errorf("#%d: status %q != history[-1].status %q", i+1, f.Status, last.Status)
		}
		if f.CurrentLocation != last.Location {
			t.Errorf("#%d: currentLocation %q != history[-1].location %q", i+1, f.CurrentLocation, last.Location)
		}
		if len(f.History) != i+2 {
			t.Errorf("#%d: len(History) = %d, ожидалось %d", i+1, len(f.History), i+2)
		}
	}

	f, _ := env.files.Get(ctx, id)
	if f.Status != model.StatusArchived || f.CurrentLocation != "Стеллаж 3" {
		t.Errorf("итоговое состояние: %q / %q", f.Status, f.CurrentLocation)
	}
	if f.Section != "Архив" || f.Owner != "petrov" {
		t.Errorf("отдел/владелец: %q / %q", f.Section, f.Owner)
	}
	if f.History[2].FromSection != "Бухгалтерия" || f.History[2].ToSection != "Архив" {
		t.Errorf("провенанс не сохранён: %+v", f.History[2])
	}
}

func TestUpdateStatus_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("файл не найден", func(t *testing.T) {
		env := newTestEnv(t, nil)
		_, err := env.files.UpdateStatus(ctx, "missing", UpdateInput{Status: model.StatusActive})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("ожидалась ErrNotFound, получено %v", err)
		}
	})

	t.Run("недопустимый статус", func(t *testing.T) {
		env := newTestEnv(t, nil)
		res, _ := env.files.Create(ctx, validInput("V-1"))
		_, err := env.files.UpdateStatus(ctx, res.File.FileID, UpdateInput{Status: "Lost"})
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("ожидалась ErrValidation, получено %v", err)
		}
	})

	t.Run("изменение отключено настройкой", func(t *testing.T) {
		repo := memstore.New()
		_ = repo.UpsertSetting(ctx, model.SettingAllowQRStatusChange, false)
		env := newTestEnv(t, repo)
		res, _ := env.files.Create(ctx, validInput("P-1"))

		_, err := env.files.UpdateStatus(ctx, res.File.FileID, UpdateInput{Status: model.StatusArchived})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("ожидалась ErrForbidden, получено %v", err)
		}
		f, _ := env.files.Get(ctx, res.File.FileID)
		if len(f.History) != 1 || f.Status != model.StatusActive {
			t.Error("запрещённое обновление изменило файл")
		}
		// Запрет проверяется до поиска файла
		if _, err := env.files.UpdateStatus(ctx, "missing", UpdateInput{}); !errors.Is(err, ErrForbidden) {
			t.Errorf("для несуществующего файла ожидалась ErrForbidden, получено %v", err)
		}
	})
}

func TestLookup(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	res, _ := env.files.Create(ctx, validInput("L-1"))
	f := res.File

	for _, term := range []string{f.FileID, f.FileNumber, f.SerialNumber, "  " + f.FileNumber + " "} {
		got, err := env.files.Lookup(ctx, term)
		if err != nil {
			t.Fatalf("Lookup(%q) ошибка: %v", term, err)
		}
		if got.FileID != f.FileID {
			t.Errorf("Lookup(%q) вернул %q", term, got.FileID)
		}
	}
	if _, err := env.files.Lookup(ctx, "nothing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if _, err := env.files.Lookup(ctx, " "); !errors.Is(err, ErrValidation) {
		t.Errorf("ожидалась ErrValidation, получено %v", err)
	}
}

func TestList_Pagination(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	for _, n := range []string{"P-1", "P-2", "P-3", "Q-1", "Q-2"} {
		env.clock.Advance(10 * time.Second)
		if _, err := env.files.Create(ctx, validInput(n)); err != nil {
			t.Fatalf("Create(%s): %v", n, err)
		}
	}

	tests := []struct {
		name                string
		page, limit         int
		query               string
		wantLen, wantPages  int
		wantNext, wantPrev  bool
		wantFirstFileNumber string
	}{
		{name: "первая страница", page: 1, limit: 2, wantLen: 2, wantPages: 3, wantNext: true, wantFirstFileNumber: "Q-2"},
		{name: "последняя страница", page: 3, limit: 2, wantLen: 1, wantPages: 3, wantPrev: true, wantFirstFileNumber: "P-1"},
		{name: "значения по умолчанию", page: 0, limit: 0, wantLen: 5, wantPages: 1, wantFirstFileNumber: "Q-2"},
		{name: "поиск по тексту", page: 1, limit: 10, query: "p-", wantLen: 3, wantPages: 1, wantFirstFileNumber: "P-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.files.List(ctx, tt.page, tt.limit, tt.query)
			if err != nil {
				t.Fatalf("List() ошибка: %v", err)
			}
			if len(res.Files) != tt.wantLen {
				t.Errorf("len(Files) = %d, ожидалось %d", len(res.Files), tt.wantLen)
			}
			if res.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, ожидалось %d", res.TotalPages, tt.wantPages)
			}
			if res.HasNextPage != tt.wantNext || res.HasPrevPage != tt.wantPrev {
				t.Errorf("HasNext/HasPrev = %v/%v", res.HasNextPage, res.HasPrevPage)
			}
			if len(res.Files) > 0 && res.Files[0].FileNumber != tt.wantFirstFileNumber {
				t.Errorf("первый файл %q, ожидался %q", res.Files[0].FileNumber, tt.wantFirstFileNumber)
			}
		})
	}

	res, _ := env.files.List(ctx, 1, 10000, "")
	if res.Limit != MaxPageLimit {
		t.Errorf("Limit = %d, ожидалось ограничение %d", res.Limit, MaxPageLimit)
	}
}

func TestGet_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t, &brokenStore{Store: memstore.New()})
	_, err := env.files.Get(context.Background(), "any")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("ожидалась ErrStoreUnavailable, получено %v", err)
	}
}

// brokenStore отвечает недоступностью на чтение файла.
type brokenStore struct {
	*memstore.Store
}

func (s *brokenStore) GetByFileID(context.Context, string) (*model.File, error) {
	return nil, store.Unavailable("get file", errors.New("connection refused"))
}
